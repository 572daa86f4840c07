package targets

import (
	"errors"
	"testing"

	"omibyte.io/rvk/queue"
)

func TestEmbeddedTargets(t *testing.T) {
	if len(All()) == 0 {
		t.Fatal("no targets embedded")
	}
	for _, target := range All() {
		if err := target.Validate(); err != nil {
			t.Errorf("%s: %v", target.Name, err)
		}
	}
}

func TestFindByName(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"qemu-virt-rv32", "qemu-virt-rv32"},
		{"virt", "qemu-virt-rv32"},
		{"QEMU", "qemu-virt-rv32"},
		{"fe310", "hifive1-revb"},
		{"virt-smp", "qemu-virt-rv32-smp"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := All().FindByName(tt.query)
			if err != nil {
				t.Fatalf("FindByName: %v", err)
			}
			if got.Name != tt.want {
				t.Errorf("got %s, want %s", got.Name, tt.want)
			}
		})
	}

	if _, err := All().FindByName("pdp-11"); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("unknown target: err = %v", err)
	}
}

func TestOptions(t *testing.T) {
	target, err := All().FindByName("qemu-virt-rv32")
	if err != nil {
		t.Fatal(err)
	}
	if q := target.Quantum(); q != 10_000 {
		t.Errorf("Quantum() = %d, want 10000", q)
	}
	opts, err := target.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if opts.Harts != 1 || opts.MaxTasks != 32 || opts.Quantum != 10_000 {
		t.Errorf("options = %+v", opts)
	}
	if opts.TieBreak != queue.TieFIFO {
		t.Errorf("TieBreak = %s, want fifo", opts.TieBreak)
	}
	if !opts.Idle || opts.IdleEntry != 0x80000200 || opts.IdleStack != 0x1000 {
		t.Errorf("idle options = %+v", opts)
	}

	esp, err := All().FindByName("esp32c3")
	if err != nil {
		t.Fatal(err)
	}
	opts, err = esp.Options()
	if err != nil {
		t.Fatal(err)
	}
	if opts.TieBreak != queue.TieLIFO || opts.Idle {
		t.Errorf("esp32c3 options = %+v", opts)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"valid", `
targets:
  - name: tiny
    harts: 1
    timebase: 1000
    tickHz: 10
    ramBase: 0x1000
    ramSize: 0x1000
    stackSize: 0x100
    tieBreak: lifo
`, true},
		{"no harts", `
targets:
  - name: tiny
    timebase: 1000
    tickHz: 10
    ramSize: 0x1000
    stackSize: 0x100
`, false},
		{"tick faster than timebase", `
targets:
  - name: tiny
    harts: 1
    timebase: 10
    tickHz: 1000
    ramSize: 0x1000
    stackSize: 0x100
`, false},
		{"ram wraps", `
targets:
  - name: tiny
    harts: 1
    timebase: 1000
    tickHz: 10
    ramBase: 0xffff0000
    ramSize: 0x20000
    stackSize: 0x100
`, false},
		{"unaligned stack", `
targets:
  - name: tiny
    harts: 1
    timebase: 1000
    tickHz: 10
    ramSize: 0x1000
    stackSize: 0x104
`, false},
		{"bad tie break", `
targets:
  - name: tiny
    harts: 1
    timebase: 1000
    tickHz: 10
    ramSize: 0x1000
    stackSize: 0x100
    tieBreak: random
`, false},
		{"not yaml", "targets: [", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse([]byte(tt.raw))
			if (err == nil) != tt.ok {
				t.Errorf("parse err = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestNames(t *testing.T) {
	names := All().Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("names not sorted: %v", names)
		}
	}
}

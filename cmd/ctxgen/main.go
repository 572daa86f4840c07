// Command ctxgen writes the C header that gives an assembly trampoline the
// byte offsets of the kernel's context and trap frame.
package main

import (
	"context"
	"flag"
	"go/types"
	"log"
	"os"

	"golang.org/x/tools/go/packages"
)

var (
	pkgPath string
	output  string
)

func init() {
	flag.StringVar(&pkgPath, "pkg", "omibyte.io/rvk/arch", "package declaring the layouts")
	flag.StringVar(&output, "o", "", "output file (default stdout)")
}

func main() {
	flag.Parse()

	cfg := packages.Config{
		Mode:    packages.NeedName | packages.NeedTypes | packages.NeedTypesSizes,
		Context: context.Background(),
		// The layout is the one of a 32-bit word, whatever the host is.
		Env: append(os.Environ(), "GOARCH=386"),
	}
	pkgs, err := packages.Load(&cfg, pkgPath)
	if err != nil {
		log.Fatal("load error: ", err)
	}
	if packages.PrintErrors(pkgs) > 0 || len(pkgs) != 1 {
		log.Fatalf("could not load %s", pkgPath)
	}

	sizes := types.SizesFor("gc", "386")
	header, err := Generate(pkgs[0].Types, sizes, layouts)
	if err != nil {
		log.Fatal("generate error: ", err)
	}

	if output == "" {
		os.Stdout.Write(header)
		return
	}
	if err := os.WriteFile(output, header, 0o644); err != nil {
		log.Fatal("file io error: ", err)
	}
}

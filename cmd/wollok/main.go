// Wollok CLI - links environment images and runs programs and tests.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/uqbar-project/wollok-go/image"
	"github.com/uqbar-project/wollok-go/linker"
	"github.com/uqbar-project/wollok-go/manifest"
	"github.com/uqbar-project/wollok-go/model"
	"github.com/uqbar-project/wollok-go/natives"
	"github.com/uqbar-project/wollok-go/stdlib"
	"github.com/uqbar-project/wollok-go/vm"
)

func main() {
	verbose := flag.Int("v", 0, "Verbosity (0-2)")
	program := flag.String("m", "", "Program entry point to run (fully-qualified name)")
	runTests := flag.Bool("test", false, "Run every test in the linked environment")
	linkOut := flag.String("link", "", "Link the images and write the merged snapshot to this file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: wollok [options] [images...]\n\n")
		fmt.Fprintf(os.Stderr, "Links the given environment images over the wollok core and runs a program or the tests.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  wollok -m example.main app.image   # Run example.main from app.image\n")
		fmt.Fprintf(os.Stderr, "  wollok -test app.image             # Run the image's tests\n")
		fmt.Fprintf(os.Stderr, "  wollok -link all.image a.image b.image  # Merge images into one\n")
	}
	flag.Parse()

	commonlog.Configure(*verbose, nil)

	cfg := vm.DefaultConfig()
	cfg.Natives = natives.Table()

	paths := flag.Args()
	if m, err := manifest.FindAndLoad("."); err == nil && m != nil {
		if len(paths) == 0 && m.Source.Image != "" {
			paths = []string{m.Source.Image}
		}
		if *program == "" {
			*program = m.Source.Entry
		}
		if m.VM.DecimalPrecision > 0 {
			cfg.DecimalPrecision = m.VM.DecimalPrecision
		}
		if m.VM.MaxFrameStackSize > 0 {
			cfg.MaxFrameStackSize = m.VM.MaxFrameStackSize
		}
		if m.VM.MaxOperandStackSize > 0 {
			cfg.MaxOperandStackSize = m.VM.MaxOperandStackSize
		}
	}

	var packages []*model.Package
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			fail("cannot read image %s: %v", path, err)
		}
		loaded, err := image.Read(data)
		if err != nil {
			fail("cannot decode image %s: %v", path, err)
		}
		packages = append(packages, loaded...)
	}

	env, err := linker.Link(stdlib.Base(), packages...)
	if err != nil {
		fail("link failed: %v", err)
	}

	if *linkOut != "" {
		// write the merged user packages; the wollok core is re-linked on load
		var merged []*model.Package
		for _, member := range env.Root.Members {
			if pkg, ok := member.(*model.Package); ok && pkg.Name != "wollok" {
				merged = append(merged, pkg)
			}
		}
		data, err := image.Write(merged)
		if err != nil {
			fail("cannot encode image: %v", err)
		}
		if err := os.WriteFile(*linkOut, data, 0o644); err != nil {
			fail("cannot write image %s: %v", *linkOut, err)
		}
		return
	}

	evaluation, err := vm.Of(env, cfg)
	if err != nil {
		fail("evaluation bootstrap failed: %v", err)
	}

	switch {
	case *runTests:
		failed := 0
		for _, result := range evaluation.RunTests() {
			if !result.Passed {
				failed++
			}
		}
		if failed > 0 {
			fail("%d test(s) failed", failed)
		}
	case *program != "":
		if err := evaluation.RunProgram(*program); err != nil {
			fail("program failed: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

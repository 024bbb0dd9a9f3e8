// Command depgraph prints a Graphviz DOT description of this module's
// package dependency graph.
//
// Grounded on misc/depgraph/main.go, which shells out to `go mod graph`
// and reformats its output as DOT edges; this version asks
// golang.org/x/tools/go/packages to load the module's own package graph
// directly instead of parsing another command's stdout.
package main

import (
	"fmt"
	"os"

	"golang.org/x/tools/go/packages"
)

func main() {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		fmt.Fprintln(os.Stderr, "depgraph:", err)
		os.Exit(1)
	}

	fmt.Println("digraph deps {")
	seen := make(map[string]bool)
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for path, imp := range pkg.Imports {
			edge := pkg.PkgPath + "\x00" + path
			if seen[edge] {
				continue
			}
			seen[edge] = true
			fmt.Printf("    %q -> %q;\n", pkg.PkgPath, imp.PkgPath)
		}
	})
	fmt.Println("}")
}

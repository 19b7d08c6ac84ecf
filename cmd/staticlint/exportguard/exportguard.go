// Package exportguard reports calls that abort the process from inside
// functions exported to C with a //export directive. A panic or os.Exit there
// tears down the host that loaded the shared library; exports must go through
// the library's violation policy instead.
package exportguard

import (
	"go/ast"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/analysis"
)

var Analyzer = &analysis.Analyzer{
	Name: "exportguard",
	Doc:  "forbids direct panic and os.Exit calls in //export functions",
	Run:  run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	for _, file := range pass.Files {
		if isGoBuildCacheFile(pass.Fset.File(file.Pos()).Name()) {
			continue
		}

		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Body == nil || !isExported(fn) {
				continue
			}

			ast.Inspect(fn.Body, func(n ast.Node) bool {
				// Deferred closures run on the export's stack too, so they are inspected.
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}

				switch fun := call.Fun.(type) {
				case *ast.Ident:
					if _, builtin := pass.TypesInfo.Uses[fun].(*types.Builtin); builtin && fun.Name == "panic" {
						pass.Reportf(call.Pos(), "avoid panic in exported function %s", fn.Name.Name)
					}
				case *ast.SelectorExpr:
					ident, ok := fun.X.(*ast.Ident)
					if ok && ident.Name == "os" && fun.Sel.Name == "Exit" {
						pass.Reportf(call.Pos(), "avoid os.Exit in exported function %s", fn.Name.Name)
					}
				}

				return true
			})
		}
	}
	return nil, nil
}

func isExported(fn *ast.FuncDecl) bool {
	if fn.Doc == nil {
		return false
	}
	for _, c := range fn.Doc.List {
		if strings.HasPrefix(c.Text, "//export ") {
			return true
		}
	}
	return false
}

func isGoBuildCacheFile(path string) bool {
	path = filepath.ToSlash(path)
	return strings.Contains(path, "/go-build/")
}

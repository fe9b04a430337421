// Package analyzer reports oracledb client calls that discard their results
// without declaring the type of the data they return.
package analyzer

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"

	"github.com/tomyedwab/oracledb/diagnostics"
)

// ClientPath is the import path of the package declaring Client.
const ClientPath = "github.com/tomyedwab/oracledb/oracledb"

// Analyzer reports the oracledb hint codes.
var Analyzer = &analysis.Analyzer{
	Name:     "oradbhints",
	Doc:      "report oracledb queries and calls whose result is ignored and whose type argument is nil",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

type rule struct {
	arg  int
	code diagnostics.Code
}

// rules is keyed by Client method name. arg is the index of the type
// argument, after the context and the query text.
var rules = map[string]rule{
	"Query": {arg: 2, code: diagnostics.RowTypeOmitted()},
	"Call":  {arg: 2, code: diagnostics.ReturnTypeOmitted()},
}

func run(pass *analysis.Pass) (interface{}, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.ExprStmt)(nil),
		(*ast.AssignStmt)(nil),
		(*ast.DeferStmt)(nil),
		(*ast.GoStmt)(nil),
	}
	insp.Preorder(nodeFilter, func(n ast.Node) {
		if call := discardedCall(n); call != nil {
			check(pass, call)
		}
	})
	return nil, nil
}

// discardedCall returns the call in n whose result is not used, if any.
func discardedCall(n ast.Node) *ast.CallExpr {
	switch stmt := n.(type) {
	case *ast.ExprStmt:
		call, _ := astutil.Unparen(stmt.X).(*ast.CallExpr)
		return call
	case *ast.DeferStmt:
		return stmt.Call
	case *ast.GoStmt:
		return stmt.Call
	case *ast.AssignStmt:
		// Only the data result matters; the error may still be checked.
		if len(stmt.Rhs) != 1 || len(stmt.Lhs) == 0 || !isBlank(stmt.Lhs[0]) {
			return nil
		}
		call, _ := astutil.Unparen(stmt.Rhs[0]).(*ast.CallExpr)
		return call
	}
	return nil
}

func isBlank(e ast.Expr) bool {
	id, ok := e.(*ast.Ident)
	return ok && id.Name == "_"
}

func check(pass *analysis.Pass, call *ast.CallExpr) {
	fn, ok := typeutil.Callee(pass.TypesInfo, call).(*types.Func)
	if !ok || !isClientMethod(fn) {
		return
	}
	r, ok := rules[fn.Name()]
	if !ok || len(call.Args) <= r.arg {
		return
	}
	arg := call.Args[r.arg]
	if !pass.TypesInfo.Types[arg].IsNil() {
		return
	}
	pass.Report(analysis.Diagnostic{
		Pos:      arg.Pos(),
		End:      arg.End(),
		Category: r.code.Code,
		Message:  r.code.Message,
	})
}

func isClientMethod(fn *types.Func) bool {
	if fn.Pkg() == nil || fn.Pkg().Path() != ClientPath {
		return false
	}
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return false
	}
	t := sig.Recv().Type()
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	named, ok := t.(*types.Named)
	return ok && named.Obj().Name() == "Client"
}

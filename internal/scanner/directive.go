// Package scanner extracts allowuntil directives from Go source trees.
// A directive is a comment of the form
//
//	//allowuntil:version=">= 1.0.x" reason="struct is deprecated"
//
// attached to a declaration, a struct field, or an interface method. The
// scanner reports each directive as a gate declaration with its source
// position; predicate evaluation happens elsewhere.
package scanner

import (
	"fmt"
	"go/ast"
	"go/token"
	"regexp"
	"strconv"
	"strings"

	"github.com/leapstack-labs/allowuntil/pkg/gate"
)

// DirectivePrefix marks an allowuntil comment. Like other Go tool
// directives there is no space between // and the prefix.
const DirectivePrefix = "//allowuntil:"

var (
	// version=">= 1.0.x" reason="..."
	argPattern = regexp.MustCompile(`(\w+)\s*=\s*("(?:[^"\\]|\\.)*")`)
)

// Error is a scan failure anchored to a source position. Any Error aborts
// the check run; the build must not proceed past a directive it cannot
// understand.
type Error struct {
	Pos gate.Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// directive is one parsed //allowuntil: comment.
type directive struct {
	version string
	reason  string
	pos     gate.Position
}

// parseDirective parses the argument list of a directive comment.
// The version argument is required, reason is optional; unknown arguments
// and unquoted values are errors, mirroring the strictness expected of a
// build-gating annotation.
func parseDirective(text string, pos gate.Position) (directive, *Error) {
	d := directive{pos: pos}
	args := strings.TrimPrefix(text, DirectivePrefix)

	matches := argPattern.FindAllStringSubmatchIndex(args, -1)

	// Every non-space byte must belong to a key="value" pair.
	consumed := 0
	for _, m := range matches {
		if strings.TrimSpace(args[consumed:m[0]]) != "" {
			return d, &Error{Pos: pos, Msg: fmt.Sprintf("malformed directive arguments %q", strings.TrimSpace(args))}
		}
		consumed = m[1]
	}
	if strings.TrimSpace(args[consumed:]) != "" {
		return d, &Error{Pos: pos, Msg: fmt.Sprintf("malformed directive arguments %q", strings.TrimSpace(args))}
	}
	if len(matches) == 0 {
		return d, &Error{Pos: pos, Msg: `missing required "version" argument`}
	}

	seenVersion := false
	for _, m := range matches {
		key := args[m[2]:m[3]]
		quoted := args[m[4]:m[5]]
		value, err := strconv.Unquote(quoted)
		if err != nil {
			return d, &Error{Pos: pos, Msg: fmt.Sprintf("invalid %s value %s", key, quoted)}
		}

		switch key {
		case "version":
			d.version = value
			seenVersion = true
		case "reason":
			d.reason = value
		default:
			return d, &Error{Pos: pos, Msg: fmt.Sprintf("unknown argument %q (valid arguments are \"version\" and \"reason\")", key)}
		}
	}

	if !seenVersion {
		return d, &Error{Pos: pos, Msg: `missing required "version" argument`}
	}
	return d, nil
}

// directivesIn collects every directive in a comment group.
func (s *Scanner) directivesIn(fset *token.FileSet, cg *ast.CommentGroup, file string) ([]directive, []*Error) {
	if cg == nil {
		return nil, nil
	}

	var dirs []directive
	var errs []*Error
	for _, c := range cg.List {
		if !strings.HasPrefix(c.Text, DirectivePrefix) {
			continue
		}
		p := fset.Position(c.Pos())
		pos := gate.Position{File: file, Line: p.Line, Column: p.Column}

		d, derr := parseDirective(c.Text, pos)
		if derr != nil {
			errs = append(errs, derr)
			continue
		}
		if verr := s.validatePredicate(d.version); verr != nil {
			errs = append(errs, &Error{Pos: pos, Msg: verr.Error()})
			continue
		}
		dirs = append(dirs, d)
	}
	return dirs, errs
}

// extract walks a parsed file and returns gates for every directive found
// on declarations, struct fields and interface methods.
func (s *Scanner) extract(fset *token.FileSet, f *ast.File, file string) ([]gate.Gate, []*Error) {
	var gates []gate.Gate
	var errs []*Error

	collect := func(cg *ast.CommentGroup, subject string) {
		dirs, derrs := s.directivesIn(fset, cg, file)
		errs = append(errs, derrs...)
		for _, d := range dirs {
			gates = append(gates, gate.Gate{
				Subject:   subject,
				Predicate: d.version,
				Reason:    d.reason,
				Pos:       d.pos,
			})
		}
	}

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			collect(d.Doc, funcSubject(d))

		case *ast.GenDecl:
			// Without parens the decl doc belongs to its single spec;
			// on a grouped decl it gates the whole group.
			if d.Lparen.IsValid() {
				collect(d.Doc, groupSubject(d))
			} else if len(d.Specs) == 1 {
				collect(d.Doc, specSubject(d.Specs[0]))
			}

			for _, spec := range d.Specs {
				switch sp := spec.(type) {
				case *ast.TypeSpec:
					if d.Lparen.IsValid() {
						collect(sp.Doc, sp.Name.Name)
					}
					collect(sp.Comment, sp.Name.Name)
					s.extractTypeMembers(fset, sp, file, collect)
				case *ast.ValueSpec:
					if d.Lparen.IsValid() {
						collect(sp.Doc, identNames(sp.Names))
					}
					collect(sp.Comment, identNames(sp.Names))
				}
			}
		}
	}

	return gates, errs
}

// extractTypeMembers collects field and method directives inside struct and
// interface types, qualifying subjects as Type.Member.
func (s *Scanner) extractTypeMembers(fset *token.FileSet, sp *ast.TypeSpec, file string, collect func(*ast.CommentGroup, string)) {
	switch t := sp.Type.(type) {
	case *ast.StructType:
		if t.Fields == nil {
			return
		}
		for _, field := range t.Fields.List {
			subject := memberSubject(sp.Name.Name, field)
			collect(field.Doc, subject)
			collect(field.Comment, subject)
		}
	case *ast.InterfaceType:
		if t.Methods == nil {
			return
		}
		for _, method := range t.Methods.List {
			subject := memberSubject(sp.Name.Name, method)
			collect(method.Doc, subject)
			collect(method.Comment, subject)
		}
	}
}

// funcSubject names a function, qualifying methods by receiver type.
func funcSubject(d *ast.FuncDecl) string {
	if d.Recv != nil && len(d.Recv.List) > 0 {
		if recv := receiverTypeName(d.Recv.List[0].Type); recv != "" {
			return recv + "." + d.Name.Name
		}
	}
	return d.Name.Name
}

// receiverTypeName unwraps pointers and type parameters down to the
// receiver's type identifier.
func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	default:
		return ""
	}
}

func specSubject(spec ast.Spec) string {
	switch sp := spec.(type) {
	case *ast.TypeSpec:
		return sp.Name.Name
	case *ast.ValueSpec:
		return identNames(sp.Names)
	default:
		return ""
	}
}

func groupSubject(d *ast.GenDecl) string {
	var names []string
	for _, spec := range d.Specs {
		if n := specSubject(spec); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", ")
}

func identNames(idents []*ast.Ident) string {
	names := make([]string, 0, len(idents))
	for _, id := range idents {
		names = append(names, id.Name)
	}
	return strings.Join(names, ", ")
}

// memberSubject names a struct field or interface method as Type.Member.
// Embedded fields fall back to the embedded type's printed form.
func memberSubject(typeName string, field *ast.Field) string {
	if len(field.Names) == 0 {
		return typeName + "." + embeddedName(field.Type)
	}
	names := make([]string, 0, len(field.Names))
	for _, id := range field.Names {
		names = append(names, typeName+"."+id.Name)
	}
	return strings.Join(names, ", ")
}

func embeddedName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return embeddedName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	default:
		return "embedded"
	}
}

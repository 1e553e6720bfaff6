package entities

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"slices"
	"strings"
	"unicode"
)

// GoSource reads entities from Go source. Every struct type with exported
// fields is an entity.
//
// Field names come from the json tag, or the snake_case Go name. Tags:
//
//	json:"-"             field is hidden
//	audit:"hidden"       field is hidden
//	audit:"readonly"     field is not writable
//	cast:"encrypted"     declared coercion
//
// Methods Get<Field>, Set<Field> and <Field> on the struct are accessors.
type GoSource struct{}

func (GoSource) Introspect(path string, src []byte) ([]Entity, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	type pending struct {
		entity  Entity
		goNames map[string]string // Go field name -> entity field name
	}
	var order []string
	byName := make(map[string]*pending)

	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				continue
			}
			e, goNames := structEntity(ts, st, path, src, fset)
			if len(goNames) == 0 {
				continue
			}
			order = append(order, ts.Name.Name)
			byName[ts.Name.Name] = &pending{entity: e, goNames: goNames}
		}
	}

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 || fn.Body == nil {
			continue
		}
		p, ok := byName[receiverName(fn.Recv.List[0].Type)]
		if !ok {
			continue
		}
		p.entity.SourceText += "\n" + nodeText(src, fset, fn)
		field, ok := accessorField(fn.Name.Name, p.goNames)
		if !ok {
			continue
		}
		body := nodeText(src, fset, fn.Body)
		if p.entity.Accessors == nil {
			p.entity.Accessors = make(map[string]string)
		}
		if prev := p.entity.Accessors[field]; prev != "" {
			body = prev + "\n" + body
		}
		p.entity.Accessors[field] = body
	}

	out := make([]Entity, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name].entity)
	}
	return out, nil
}

func structEntity(ts *ast.TypeSpec, st *ast.StructType, path string, src []byte, fset *token.FileSet) (Entity, map[string]string) {
	e := Entity{
		Name:        ts.Name.Name,
		Source:      path,
		Casts:       make(map[string]string),
		Identifiers: make(map[string]string),
		SourceText:  nodeText(src, fset, ts),
	}
	goNames := make(map[string]string)

	for _, f := range st.Fields.List {
		var tag reflect.StructTag
		if f.Tag != nil {
			tag = reflect.StructTag(strings.Trim(f.Tag.Value, "`"))
		}
		for _, ident := range f.Names {
			if !ident.IsExported() {
				continue
			}
			field, hidden := fieldName(ident.Name, tag)
			goNames[ident.Name] = field
			if !strings.EqualFold(ident.Name, field) {
				e.Identifiers[field] = ident.Name
			}

			audit := strings.Split(tag.Get("audit"), ",")
			if hidden || slices.Contains(audit, "hidden") {
				e.Hidden = append(e.Hidden, field)
			}
			if !slices.Contains(audit, "readonly") {
				e.Fillable = append(e.Fillable, field)
			}
			if c := tag.Get("cast"); c != "" {
				e.Casts[field] = c
			} else if t := nodeText(src, fset, f.Type); isNamedType(f.Type) {
				e.Casts[field] = t
			}
		}
	}
	return e, goNames
}

func accessorField(method string, goNames map[string]string) (string, bool) {
	if f, ok := goNames[method]; ok {
		return f, true
	}
	for _, prefix := range []string{"Get", "Set"} {
		if rest, ok := strings.CutPrefix(method, prefix); ok {
			if f, ok := goNames[rest]; ok {
				return f, true
			}
		}
	}
	return "", false
}

func fieldName(goName string, tag reflect.StructTag) (string, bool) {
	jsonTag, ok := tag.Lookup("json")
	if ok {
		name, _, _ := strings.Cut(jsonTag, ",")
		if name == "-" {
			return snakeCase(goName), true
		}
		if name != "" {
			return name, false
		}
	}
	return snakeCase(goName), false
}

// isNamedType excludes predeclared identifiers, whose names carry no
// coercion information.
func isNamedType(expr ast.Expr) bool {
	switch t := expr.(type) {
	case *ast.Ident:
		return !isPredeclared(t.Name)
	case *ast.StarExpr:
		return isNamedType(t.X)
	case *ast.SelectorExpr:
		return true
	}
	return false
}

func isPredeclared(name string) bool {
	switch name {
	case "bool", "string", "byte", "rune", "error", "any",
		"int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
		"float32", "float64", "complex64", "complex128":
		return true
	}
	return false
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	}
	return ""
}

func nodeText(src []byte, fset *token.FileSet, n ast.Node) string {
	start := fset.Position(n.Pos()).Offset
	end := fset.Position(n.End()).Offset
	if start < 0 || end > len(src) || start > end {
		return ""
	}
	return string(bytes.TrimSpace(src[start:end]))
}

// snakeCase converts a Go identifier: CreditCard -> credit_card,
// APIToken -> api_token, UserID -> user_id.
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

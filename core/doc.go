package core

import "github.com/lucasmira/pgdoc/compiler"

// Doc, Entry, Arr and M are the ordered-document types the model layer
// exchanges with the compiler package. Aliased here so callers only ever
// import "core", never "compiler", to build filters and update operators.
type (
	Doc   = compiler.Doc
	Entry = compiler.Entry
	Arr   = compiler.Arr
	M     = compiler.M
)

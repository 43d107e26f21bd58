package lexer

import (
	"fmt"
	"os"

	"avulto/internal/dmerr"
)

// Options configures a full lexing run.
type Options struct {
	ReadFile ReadFileFunc
	Defines  map[string]string
}

// Result is the fully processed token stream of an environment.
type Result struct {
	Tokens    []Token
	Includes  []string
	Resources []string
}

// LexFile reads root and everything it includes.
func LexFile(root string, opts Options) (*Result, error) {
	read := opts.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(root)
	if err != nil {
		return nil, dmerr.IO("read", root, err)
	}
	opts.ReadFile = read
	return LexString(root, string(data), opts)
}

// LexString lexes src as the root unit named file. Includes are resolved
// relative to file.
func LexString(file, src string, opts Options) (*Result, error) {
	pp := NewPreprocessor(file, opts.ReadFile, opts.Defines)
	pp.Push(file, src)

	var in indenter
	for {
		tok, err := pp.Next()
		if err != nil {
			return nil, fmt.Errorf("lex %s: %w", file, err)
		}
		in.push(tok)
		if tok.Kind == EOF {
			break
		}
	}
	return &Result{
		Tokens:    in.out,
		Includes:  pp.Includes(),
		Resources: pp.Resources(),
	}, nil
}

// Tokens is LexString without the include bookkeeping, for snippets.
func Tokens(file, src string) ([]Token, error) {
	res, err := LexString(file, src, Options{})
	if err != nil {
		return nil, err
	}
	return res.Tokens, nil
}

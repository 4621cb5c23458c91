package sexp

import (
	"path/filepath"
	"sort"
	"strings"
)

// Dialect describes a Lisp family member: the file extensions it uses and
// the head symbols that introduce a named definition.
type Dialect struct {
	Name       string
	Extensions []string
	Definers   []string
}

var dialects = []Dialect{
	{
		Name:       "emacs-lisp",
		Extensions: []string{".el"},
		Definers: []string{
			"defun", "defmacro", "defsubst", "cl-defun", "cl-defmacro",
			"cl-defgeneric", "cl-defmethod", "define-minor-mode",
			"define-derived-mode", "defvar", "defcustom", "defconst", "defalias",
		},
	},
	{
		Name:       "common-lisp",
		Extensions: []string{".lisp", ".lsp", ".cl", ".asd"},
		Definers: []string{
			"defun", "defmacro", "defgeneric", "defmethod", "defvar",
			"defparameter", "defconstant",
		},
	},
	{
		Name:       "scheme",
		Extensions: []string{".scm", ".ss", ".sld"},
		Definers:   []string{"define", "define-syntax", "define-record-type"},
	},
	{
		Name:       "racket",
		Extensions: []string{".rkt"},
		Definers:   []string{"define", "define-syntax", "define-values"},
	},
	{
		Name:       "clojure",
		Extensions: []string{".clj", ".cljs", ".cljc", ".edn"},
		Definers: []string{
			"defn", "defn-", "defmacro", "def", "defmulti", "defmethod", "defprotocol",
		},
	},
	{
		Name:       "fennel",
		Extensions: []string{".fnl"},
		Definers:   []string{"fn", "macro", "local", "global"},
	},
}

// extToDialect maps lower-case file extensions to dialect names.
var extToDialect = func() map[string]string {
	m := make(map[string]string)
	for _, d := range dialects {
		for _, ext := range d.Extensions {
			m[ext] = d.Name
		}
	}
	return m
}()

// DialectForFile returns the dialect name for a file path based on its
// extension. Returns ("", false) if the extension is not recognized.
func DialectForFile(path string) (string, bool) {
	name, ok := extToDialect[strings.ToLower(filepath.Ext(path))]
	return name, ok
}

// DialectByName returns the named dialect.
func DialectByName(name string) (Dialect, bool) {
	for _, d := range dialects {
		if d.Name == name {
			return d, true
		}
	}
	return Dialect{}, false
}

// DialectNames returns all dialect names, sorted.
func DialectNames() []string {
	names := make([]string, len(dialects))
	for i, d := range dialects {
		names[i] = d.Name
	}
	sort.Strings(names)
	return names
}

// Definition reports whether l is a named definition in dialect d, such as
// (defun name ...). It returns the definer and the defined name.
func (d Dialect) Definition(l *List) (kind, name string, ok bool) {
	if len(l.Items) < 2 {
		return "", "", false
	}
	head, isSym := l.Items[0].(Symbol)
	if !isSym || !d.isDefiner(string(head)) {
		return "", "", false
	}
	// Scheme puts the name at the head of the formals, possibly curried:
	// (define (name . args) ...) or (define ((name a) b) ...).
	target := l.Items[1]
	for {
		switch v := target.(type) {
		case Symbol:
			return string(head), string(v), true
		case *List:
			target = v.Head()
		case *Pair:
			target = v.Head()
		default:
			return "", "", false
		}
	}
}

func (d Dialect) isDefiner(s string) bool {
	for _, def := range d.Definers {
		if def == s {
			return true
		}
	}
	return false
}

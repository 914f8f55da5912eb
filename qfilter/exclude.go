package qfilter

import (
	"strings"

	"github.com/fatih/structs"
)

// FieldLister names fields that must never reach the filter document, such
// as pagination or sorting parameters. A name matches the full parameter key
// and also its base field, so excluding "limit" drops "limit__lt" too.
type FieldLister interface {
	FieldNames() []string
}

// FieldList is a literal list of excluded field names.
type FieldList []string

func (l FieldList) FieldNames() []string { return l }

// StructFields lists the exported fields of a struct (or pointer to struct)
// by their json name, falling back to the Go field name. Fields tagged
// json:"-" are skipped. A non-struct yields no names.
func StructFields(model any) FieldLister {
	return structModel{model: model}
}

type structModel struct {
	model any
}

func (m structModel) FieldNames() []string {
	if m.model == nil || !structs.IsStruct(m.model) {
		return nil
	}
	var names []string
	for _, f := range structs.New(m.model).Fields() {
		if !f.IsExported() {
			continue
		}
		name := f.Name()
		if tag := f.Tag("json"); tag != "" {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		names = append(names, name)
	}
	return names
}

// Exclusions combines several listers; nil entries are ignored.
func Exclusions(listers ...FieldLister) FieldLister {
	return multiLister(listers)
}

type multiLister []FieldLister

func (m multiLister) FieldNames() []string {
	var out []string
	for _, l := range m {
		if l == nil {
			continue
		}
		out = append(out, l.FieldNames()...)
	}
	return out
}

type exclusionSet map[string]struct{}

func newExclusionSet(listers ...FieldLister) exclusionSet {
	set := make(exclusionSet)
	for _, l := range listers {
		if l == nil {
			continue
		}
		for _, name := range l.FieldNames() {
			set[name] = struct{}{}
		}
	}
	return set
}

// excludes matches the full key and its base field, so excluding "page"
// also drops "page__gt".
func (s exclusionSet) excludes(key, base string) bool {
	if _, ok := s[key]; ok {
		return true
	}
	_, ok := s[base]
	return ok
}

package writer

import (
	"strings"

	"github.com/coregx/ahocorasick"
)

// AliasIDOf builds an IDFunc that recognizes any of aliases (case-insensitive,
// e.g. "id", "_id", "uid", "pk", "nodeId") as the identifying field of an
// object, in addition to the exact "id"/"_id" fields DefaultIDOf checks.
// Mirrors the teacher's "single automaton serves lookup and scanning" design
// for its entity dictionary: rather than comparing every object key against
// every alias in a nested loop, one Aho-Corasick automaton scans each key
// once and reports which aliases it exactly matches.
func AliasIDOf(aliases ...string) (IDFunc, error) {
	canon := make([]string, len(aliases))
	for i, a := range aliases {
		canon[i] = strings.ToLower(a)
	}
	automaton, err := ahocorasick.NewBuilder().
		AddStrings(canon).
		SetMatchKind(ahocorasick.LeftmostLongest).
		Build()
	if err != nil {
		return nil, err
	}
	scanner := &aliasScanner{ac: automaton, aliases: canon}
	return scanner.idOf, nil
}

type aliasScanner struct {
	ac      *ahocorasick.Automaton
	aliases []string
}

// idOf returns typename:<value> for the first object key whose lowercase
// form exactly equals one of the configured aliases. "Exactly" is enforced
// by requiring the match to span the whole key, since the automaton reports
// every substring occurrence, not just whole-key ones.
func (s *aliasScanner) idOf(obj map[string]any, typename string) (string, bool) {
	if typename == "" {
		return "", false
	}
	if id, ok := DefaultIDOf(obj, typename); ok {
		return id, true
	}
	for key, v := range obj {
		lower := strings.ToLower(key)
		for _, m := range s.ac.FindAllOverlapping([]byte(lower)) {
			if m.Start == 0 && m.End == len(lower) {
				if s, ok := scalarID(v); ok {
					return typename + ":" + s, true
				}
			}
		}
	}
	return "", false
}

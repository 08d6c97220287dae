package step

import (
	"fmt"
	"sort"
	"strings"
)

// Diff is the printable operator diagnostic produced after every registry
// mutation: topics with no emitter, emitters whose topic nobody subscribes,
// and any other reference problems found.
type Diff struct {
	OrphanTopics          []string // emitted but never subscribed by any loaded step
	DanglingSubscriptions []string // subscribed but never emitted by any loaded step
	InvalidReferences     []string // free-form notes, e.g. malformed schema documents
}

// Empty reports whether the diff has nothing to show an operator.
func (d Diff) Empty() bool {
	return len(d.OrphanTopics) == 0 && len(d.DanglingSubscriptions) == 0 && len(d.InvalidReferences) == 0
}

// String renders a human-readable summary suitable for a log line or CLI
// output, omitting sections with nothing to report.
func (d Diff) String() string {
	if d.Empty() {
		return "step graph: no issues"
	}
	var b strings.Builder
	b.WriteString("step graph diagnostics:")
	if len(d.OrphanTopics) > 0 {
		fmt.Fprintf(&b, "\n  orphan topics (emitted, no subscriber): %s", strings.Join(d.OrphanTopics, ", "))
	}
	if len(d.DanglingSubscriptions) > 0 {
		fmt.Fprintf(&b, "\n  dangling subscriptions (no emitter in graph): %s", strings.Join(d.DanglingSubscriptions, ", "))
	}
	if len(d.InvalidReferences) > 0 {
		fmt.Fprintf(&b, "\n  invalid references: %s", strings.Join(d.InvalidReferences, ", "))
	}
	return b.String()
}

// diffSnapshot computes orphan/dangling topics from a fully built snapshot.
func diffSnapshot(snap *snapshot) Diff {
	emitted := make(map[string]struct{})
	subscribed := make(map[string]struct{})
	for _, st := range snap.steps {
		for _, e := range st.Config.Emits() {
			emitted[e.Topic] = struct{}{}
		}
		for _, t := range st.Config.Subscribes() {
			subscribed[t] = struct{}{}
		}
	}

	var orphan, dangling []string
	for t := range emitted {
		if _, ok := subscribed[t]; !ok {
			orphan = append(orphan, t)
		}
	}
	for t := range subscribed {
		if _, ok := emitted[t]; !ok {
			dangling = append(dangling, t)
		}
	}
	sort.Strings(orphan)
	sort.Strings(dangling)
	return Diff{OrphanTopics: orphan, DanglingSubscriptions: dangling}
}

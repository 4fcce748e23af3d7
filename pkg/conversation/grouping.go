package conversation

// Group collects a root conversation and the forks that name it as their parent.
// Main stays nil when the root never shows up as a top-level entry, for instance after
// it was deleted.
type Group struct {
	RootID string
	Main   *HistoryEntry
	Forks  []HistoryEntry
}

func (g *Group) HasMain() bool {
	return g.Main != nil
}

// Forest is the one-level display grouping of a history list.
type Forest struct {
	Groups []*Group
	byRoot map[string]*Group
}

// GroupHistory groups entries in a single pass. Groups keep the order in which their
// root id was first seen, forks keep their relative input order.
func GroupHistory(entries []HistoryEntry) *Forest {
	f := &Forest{
		Groups: []*Group{},
		byRoot: make(map[string]*Group),
	}

	for i := range entries {
		entry := entries[i]
		if entry.ParentChatID == "" {
			g := f.group(entry.ID)
			g.Main = &entry
			continue
		}
		g := f.group(entry.ParentChatID)
		g.Forks = append(g.Forks, entry)
	}

	return f
}

func (f *Forest) group(rootID string) *Group {
	if g, ok := f.byRoot[rootID]; ok {
		return g
	}
	g := &Group{RootID: rootID, Forks: []HistoryEntry{}}
	f.byRoot[rootID] = g
	f.Groups = append(f.Groups, g)
	return g
}

func (f *Forest) Get(rootID string) (*Group, bool) {
	g, ok := f.byRoot[rootID]
	return g, ok
}

func (f *Forest) Len() int {
	return len(f.Groups)
}

// Orphans returns the groups whose root is not present as a top-level entry.
func (f *Forest) Orphans() []*Group {
	ret := []*Group{}
	for _, g := range f.Groups {
		if g.Main == nil {
			ret = append(ret, g)
		}
	}
	return ret
}

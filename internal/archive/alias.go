package archive

import "photark/internal/model"

// BuildAliasPaths returns an id -> alias-path map for the given albums.
// An album's alias path is the slash-joined chain of aliases from its root:
// a root's alias path is its own alias, a child's is parent.aliasPath + "/" +
// child.alias. Albums whose parent is missing from the input are treated as
// roots.
func BuildAliasPaths(albums []*model.Album) map[string]string {
	byID := make(map[string]*model.Album, len(albums))
	for _, a := range albums {
		byID[a.ID] = a
	}

	paths := make(map[string]string, len(albums))

	var walk func(a *model.Album) string
	walk = func(a *model.Album) string {
		if p, ok := paths[a.ID]; ok {
			return p
		}
		path := a.Alias
		if a.ParentID != "" {
			if parent, ok := byID[a.ParentID]; ok {
				path = walk(parent) + "/" + a.Alias
			}
		}
		paths[a.ID] = path
		return path
	}

	for _, a := range albums {
		walk(a)
	}
	return paths
}

// ExpandAlbumSelection returns the given album ids plus the ids of all their
// descendants. Unknown ids pass through unchanged so callers can report them.
func ExpandAlbumSelection(albums []*model.Album, selected []string) []string {
	children := make(map[string][]string, len(albums))
	for _, a := range albums {
		if a.ParentID != "" {
			children[a.ParentID] = append(children[a.ParentID], a.ID)
		}
	}

	seen := make(map[string]bool, len(selected))
	var out []string
	var visit func(id string)
	visit = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
		for _, child := range children[id] {
			visit(child)
		}
	}
	for _, id := range selected {
		visit(id)
	}
	return out
}

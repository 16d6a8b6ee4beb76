package cart

// Merge combines two item collections by ItemRef. Server lines keep their
// position and snapshot; matching client quantities are added to them, and
// unknown client refs are appended with their own snapshot. Lines without a
// ref or with a non-positive quantity are dropped. Neither input is modified.
func Merge(server, client []Item) []Item {
	out := make([]Item, 0, len(server)+len(client))
	index := make(map[string]int, len(server)+len(client))

	add := func(it Item) {
		if it.ItemRef == "" || it.Quantity < 1 {
			return
		}
		if i, ok := index[it.ItemRef]; ok {
			out[i].Quantity += it.Quantity
			return
		}
		index[it.ItemRef] = len(out)
		out = append(out, it)
	}

	for _, it := range server {
		add(it)
	}
	for _, it := range client {
		add(it)
	}
	return out
}

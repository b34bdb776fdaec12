package portales

import "golang.org/x/net/html"

// findStrategy is one named way of locating a node. Adapters declare an
// ordered list per element they need; firstMatch tries them in order and
// reports which one hit, so logs show exactly which DOM shape the page had.
type findStrategy struct {
	name string
	find func(*html.Node) *html.Node
}

// firstMatch runs strategies in order, returning the first hit and the
// name of the strategy that produced it.
func firstMatch(doc *html.Node, strategies []findStrategy) (*html.Node, string) {
	for _, s := range strategies {
		if n := s.find(doc); n != nil {
			return n, s.name
		}
	}
	return nil, ""
}

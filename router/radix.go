// Package router is a small radix-tree path matcher used to wire a
// dispatch.Dispatcher together with HandlerFuncs, adapted from the
// byte-slice radix tree the teacher used for its own request routing.
package router

import (
	"strings"

	"github.com/s00inx/wsconn/httpmsg"
)

// HandlerFunc answers one request. The returned *httpmsg.Response is
// written verbatim by the Connection.
type HandlerFunc func(c *Context) (*httpmsg.Response, error)

// node is a radix-tree node keyed on path segments. Params (segments
// starting with ':') match any single segment and are captured by name.
type node struct {
	prefix   string
	children []node
	handler  HandlerFunc
	isParam  bool
}

func newRoot() node {
	return node{children: make([]node, 0)}
}

// insert links path (e.g. "/api/:id/name") to h.
func (n *node) insert(path string, h HandlerFunc) {
	path = strings.TrimPrefix(path, "/")
	cur := n
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		isParam := seg[0] == ':'
		prefix := seg
		if isParam {
			prefix = seg[1:]
		}

		idx := -1
		for i := range cur.children {
			if cur.children[i].prefix == prefix {
				idx = i
				break
			}
		}
		if idx == -1 {
			cur.children = append(cur.children, node{prefix: prefix, isParam: isParam})
			idx = len(cur.children) - 1
		}
		cur = &cur.children[idx]
	}
	cur.handler = h
}

// match walks path and fills params with any captured ":name" segments.
// Returns nil if nothing matches.
func (n *node) match(path string, params *[]routeParam) HandlerFunc {
	path = strings.TrimPrefix(path, "/")
	cur := n
	for len(path) > 0 {
		found := false
		for i := range cur.children {
			c := &cur.children[i]

			if c.isParam {
				end := strings.IndexByte(path, '/')
				if end == -1 {
					end = len(path)
				}
				*params = append(*params, routeParam{Key: c.prefix, Val: path[:end]})
				path = path[end:]
				cur = c
				found = true
				break
			}

			if strings.HasPrefix(path, c.prefix) {
				rem := path[len(c.prefix):]
				if rem == "" || rem[0] == '/' {
					path = rem
					cur = c
					found = true
					break
				}
			}
		}
		if !found {
			return nil
		}
		path = strings.TrimPrefix(path, "/")
	}
	return cur.handler
}

type routeParam struct {
	Key, Val string
}

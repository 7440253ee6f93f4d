// Package api combines token delivery and code verification behind one
// Service. Verification backends are tried in order; the first to accept
// the code wins.
package api

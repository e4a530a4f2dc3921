// Package catalog reads the externally produced instrument list.
//
// The catalog is a JSON array of objects keyed by the listing scraper's field
// names:
//
//	[{"代碼": "2330", "名稱": "台積電", "市場": "上市", "類別": "半導體業"}, ...]
//
// Entries with an unknown market or an empty code are skipped with a warning.
// An instrument that appears under several categories is kept once, at its
// first position.
package catalog

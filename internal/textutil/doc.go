// Package textutil holds the string primitives shared by the matchers:
// Unicode case folding, identifier normalization, tokenization and the
// 0-100 similarity scores (ratio, partial ratio, token sort and token set).
package textutil

// Package faq matches free-text questions against a fixed set of FAQ
// entries.
//
// Questions are normalised, segmented by a Tokenizer, and weighted with
// smoothed TF-IDF into L2-normalised sparse vectors. A query is answered with
// the entry whose question has the highest cosine similarity, provided the
// score reaches the threshold; otherwise the fallback text is returned.
//
// A Matcher is built once and is read-only afterwards, so a single value can
// serve any number of goroutines.
package faq

// Package normalisers converts upstream content bodies to markdown.
//
// Each normaliser handles one domain.BodyFormat. The renderer looks up the
// normaliser for a body in a Registry; bodies in a format with no registered
// normaliser are used as they are.
package normalisers

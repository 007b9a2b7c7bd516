// Package richtext converts the HTML the server stores in rich text
// fields into plain text. Tables become fixed-width character grids,
// item reference spans collapse to ids or resolved display strings, and
// formula spans echo their source expression.
package richtext

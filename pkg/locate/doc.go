/*
Package locate finds method blocks in smali source text.

	+-------------+
	|    Scan     |
	| (Tokenizer) |
	+------+------+
	       |
	+------+------+
	|  Selector   |
	|  (Filters)  |
	+-------------+

🎯 Purpose:
- Recovers method boundaries from flat text using the .method and
  .end method anchors, without a grammar
- Records every block's [Start, End) span on the immutable buffer
- Applies keyword and return-type filters to located blocks

🔄 Flow:
1. Walk the buffer line by line
2. On a matching header, take the nearest following footer (blocks
   never nest)
3. Yield ordered, non-overlapping blocks with explicit offsets

📝 Design Philosophy:
A single-pass tokenizer with explicit span tracking replaces the
fragile header-to-nearest-footer regex approach: splicing happens by
offset range, so duplicate boilerplate blocks need no occurrence
counting to stay disjoint.
*/
package locate

/*
Package fudge implements the Fudge self-describing hierarchical binary
message encoding: a wire codec, a streaming event model that lets binary,
JSON, and XML encodings convert into one another without materializing a
full tree, and a reflection-driven object graph serializer built on top of
both.

A Message is an ordered sequence of (name?, ordinal?, type, value) fields,
built directly or read from the wire with DecodeBinary (or NewReader and
its HasNext/MoveNext events) and written with NewWriter/Writer.WriteWholeMessage. EncodeJSON/DecodeJSON
and EncodeXML/DecodeXML convert a Message to and from the same tree shape
in the other two encodings. Pipe forwards the linear event sequence from
any reader directly to any writer, for use cases that need conversion
without holding a whole message in memory.

Serialize and DeserializeMessage walk an arbitrary Go object graph through
a TypeMap's Surrogates — a user-implemented hook, a classic name/value
info bag, a list/dictionary surrogate for slices and maps, or the default
bean surrogate driven by `fudge:"name,omitempty"` struct tags — producing
or consuming a Message whose first field in every object's sub-message
carries that object's runtime type.
*/
package fudge

// Package arweave implements the pieces of the Arweave protocol used to
// publish content: JWK wallets, the ANS-104 data item format, its deep-hash
// signature payload, and the avro encoding of data item tags.
//
// Data items are built in two passes over their payload. The first pass
// computes the deep hash which is signed, and the second streams the payload
// behind the signed header. Payloads are therefore supplied as factories which
// may be invoked more than once:
//
//	var item = arweave.DataItem{Tags: []arweave.Tag{{Name: "Content-Type", Value: "text/html"}}}
//	signed, err := item.Sign(wallet, open, size)
//	// signed.ID is the content identifier; signed.Header precedes the payload on the wire.
package arweave

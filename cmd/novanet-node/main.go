// novanet-node runs one node of a novanet network: membership,
// anti-entropy, chunk storage, and delivery-group routing for whichever
// section this node currently belongs to.
package main

func main() {
	CLI()
}

package main

const (
	modemTxQueueSize = 256 // capacity of the modem's async TX ring
)

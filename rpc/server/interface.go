package server

import (
	"github.com/ValentinKolb/dMsg/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and creating the replies
type IRPCServerAdapter interface {
	// Types returns the message types the adapter handles
	Types() []common.MessageType

	// Handle handles a valid request and returns the messages to send back, in order.
	// An empty result sends nothing.
	// If an error is returned an error frame is sent instead
	Handle(req common.Message) (replies []common.Message, err error)
}

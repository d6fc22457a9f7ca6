package server

import (
	"fmt"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"strings"
)

// NewSystemServerAdapter creates the adapter for Ping and Log messages
func NewSystemServerAdapter() IRPCServerAdapter {
	return &systemServerAdapterImpl{}
}

type systemServerAdapterImpl struct{}

func (adapter *systemServerAdapterImpl) Types() []common.MessageType {
	return []common.MessageType{common.MsgTPing, common.MsgTLog}
}

func (adapter *systemServerAdapterImpl) Handle(req common.Message) ([]common.Message, error) {
	switch req.Type {
	case common.MsgTPing:
		// Pong echoes the payload of the ping
		pong, err := common.NewReply(req, common.MsgTPong, nil)
		if err != nil {
			return nil, err
		}
		pong.Payload = req.Payload
		return []common.Message{pong}, nil

	case common.MsgTLog:
		var entry common.LogPayload
		if err := req.DecodePayload(&entry); err != nil {
			return nil, fmt.Errorf("invalid log payload: %w", err)
		}
		logClientEntry(entry)
		return nil, nil

	default:
		return nil, fmt.Errorf("system adapter - unsupported message type: %s", req.Type)
	}
}

// logClientEntry writes a log entry sent by a client with the matching level
func logClientEntry(entry common.LogPayload) {
	switch strings.ToLower(entry.Level) {
	case "debug":
		Logger.Debugf("client: %s", entry.Message)
	case "warn", "warning":
		Logger.Warningf("client: %s", entry.Message)
	case "error":
		Logger.Errorf("client: %s", entry.Message)
	default:
		Logger.Infof("client: %s", entry.Message)
	}
}

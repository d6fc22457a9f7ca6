package server

import (
	"fmt"
	"github.com/ValentinKolb/dMsg/rpc/common"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"slices"
)

// NewNpmServerAdapter creates the adapter for npm package checks and pattern
// library connections. Connected libraries are kept in memory per project.
func NewNpmServerAdapter() IRPCServerAdapter {
	return &npmServerAdapterImpl{
		projects: xsync.NewMapOf[string, []string](),
	}
}

type npmServerAdapterImpl struct {
	// project id -> connected npm ids, in connection order
	projects *xsync.MapOf[string, []string]
}

func (adapter *npmServerAdapterImpl) Types() []common.MessageType {
	return []common.MessageType{
		common.MsgTCheckNpmPackageRequest,
		common.MsgTConnectNpmPatternLibraryRequest,
	}
}

func (adapter *npmServerAdapterImpl) Handle(req common.Message) ([]common.Message, error) {
	switch req.Type {
	case common.MsgTCheckNpmPackageRequest:
		var p common.NpmPackagePayload
		if err := req.DecodePayload(&p); err != nil {
			return nil, fmt.Errorf("invalid npm package payload: %w", err)
		}
		resp, err := common.NewReply(req, common.MsgTCheckNpmPackageResponse, common.NpmPackageResultPayload{
			NpmID: p.NpmID,
			Valid: p.NpmID != "",
		})
		if err != nil {
			return nil, err
		}
		return []common.Message{resp}, nil

	case common.MsgTConnectNpmPatternLibraryRequest:
		var p common.NpmLibraryPayload
		if err := req.DecodePayload(&p); err != nil {
			return nil, fmt.Errorf("invalid npm library payload: %w", err)
		}
		return adapter.connect(req, p)

	default:
		return nil, fmt.Errorf("npm adapter - unsupported message type: %s", req.Type)
	}
}

// connect adds the library to the project and returns the response followed
// by a ProjectUpdate. Rejected requests only get a response carrying the error.
func (adapter *npmServerAdapterImpl) connect(req common.Message, p common.NpmLibraryPayload) ([]common.Message, error) {
	result := common.NpmLibraryResultPayload{NpmID: p.NpmID, ProjectID: p.ProjectID}

	switch {
	case p.NpmID == "":
		result.Err = "npm id must not be empty"
	case p.ProjectID == "":
		result.Err = "project id must not be empty"
	}
	if result.Err != "" {
		resp, err := common.NewReply(req, common.MsgTConnectNpmPatternLibraryResponse, result)
		if err != nil {
			return nil, err
		}
		return []common.Message{resp}, nil
	}

	// the library id is stable for a project and package
	result.LibraryID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(p.ProjectID+"/"+p.NpmID)).String()

	libraries, _ := adapter.projects.Compute(p.ProjectID, func(old []string, _ bool) ([]string, bool) {
		if slices.Contains(old, p.NpmID) {
			return old, false
		}
		next := make([]string, len(old), len(old)+1)
		copy(next, old)
		return append(next, p.NpmID), false
	})

	resp, err := common.NewReply(req, common.MsgTConnectNpmPatternLibraryResponse, result)
	if err != nil {
		return nil, err
	}
	update, err := common.NewMessage(common.MsgTProjectUpdate, common.ProjectUpdatePayload{
		ProjectID: p.ProjectID,
		Libraries: libraries,
	})
	if err != nil {
		return nil, err
	}

	Logger.Infof("Connected library %s to project %s", p.NpmID, p.ProjectID)
	return []common.Message{resp, update}, nil
}

// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/crypto"
	"github.com/luxfi/ids"
	"go.uber.org/zap"

	"github.com/luxfi/planetbounce"
	"github.com/luxfi/planetbounce/coprocessor"
)

// Server exposes a coprocessor over the service HTTP API. In production the
// bridge forwards to a remote deployment of this surface; in development it
// forwards to a local Server.
type Server struct {
	log *zap.Logger
	cop *coprocessor.Service
}

func NewServer(log *zap.Logger, cop *coprocessor.Service) *Server {
	return &Server{log: log, cop: cop}
}

// RegisterRoutes mounts the service API on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(InputPath, s.handleInput)
	mux.HandleFunc(UserDecryptPath, s.handleUserDecrypt)
	mux.HandleFunc(KeyURLPath, s.handleKeyURL)
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(s.log, w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(s.log, w, http.StatusBadRequest, "could not read request body")
		return
	}
	reqID := requestID(body)

	var req InputRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.log.Warn("could not decode input request", zap.Stringer("requestID", reqID), zap.Error(err))
		writeJSONError(s.log, w, http.StatusBadRequest, "could not decode request body")
		return
	}
	if !common.IsHexAddress(req.ContractAddress) || !common.IsHexAddress(req.UserAddress) {
		writeJSONError(s.log, w, http.StatusBadRequest, "invalid contract or user address")
		return
	}

	handle, proof, err := s.cop.Encrypt(
		common.HexToAddress(req.ContractAddress),
		common.HexToAddress(req.UserAddress),
		req.Value,
	)
	if err != nil {
		s.log.Warn("encryption failed", zap.Stringer("requestID", reqID), zap.Error(err))
		writeJSONError(s.log, w, statusForError(err), err.Error())
		return
	}

	s.log.Debug("encrypted input served",
		zap.Stringer("requestID", reqID),
		zap.Stringer("handle", handle),
	)
	writeJSON(s.log, w, InputResponse{
		Handle:     handle.Hex(),
		InputProof: hexutil.Encode(proof),
	})
}

func (s *Server) handleUserDecrypt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(s.log, w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(s.log, w, http.StatusBadRequest, "could not read request body")
		return
	}
	reqID := requestID(body)

	var wire UserDecryptRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		s.log.Warn("could not decode decrypt request", zap.Stringer("requestID", reqID), zap.Error(err))
		writeJSONError(s.log, w, http.StatusBadRequest, "could not decode request body")
		return
	}

	req, err := parseDecryptRequest(&wire)
	if err != nil {
		s.log.Warn("malformed decrypt request", zap.Stringer("requestID", reqID), zap.Error(err))
		writeJSONError(s.log, w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.cop.UserDecrypt(req)
	if err != nil {
		s.log.Warn("decryption rejected", zap.Stringer("requestID", reqID), zap.Error(err))
		writeJSONError(s.log, w, statusForError(err), err.Error())
		return
	}

	s.log.Debug("decryption served",
		zap.Stringer("requestID", reqID),
		zap.String("user", req.User.Hex()),
	)
	writeJSON(s.log, w, UserDecryptResponse{
		Values:      resp.Values,
		Attestation: hexutil.Encode(resp.Attestation),
	})
}

func (s *Server) handleKeyURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(s.log, w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	domain := s.cop.Domain()
	chainID := uint64(0)
	if domain.ChainId != nil {
		chainID = (*big.Int)(domain.ChainId).Uint64()
	}
	writeJSON(s.log, w, KeyURLResponse{
		Status: "ready",
		Domain: DomainInfo{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainID:           chainID,
			VerifyingContract: domain.VerifyingContract,
		},
		AttestationKey: hexutil.Encode(bls.PublicKeyToCompressedBytes(s.cop.AttestationKey())),
	})
}

// parseDecryptRequest converts the wire request into the coprocessor form.
func parseDecryptRequest(wire *UserDecryptRequest) (*coprocessor.DecryptRequest, error) {
	if !common.IsHexAddress(wire.UserAddress) {
		return nil, errors.New("invalid user address")
	}
	pairs := make([]coprocessor.HandleContractPair, 0, len(wire.HandleContractPairs))
	for _, p := range wire.HandleContractPairs {
		handle, err := planetbounce.ParseHandle(p.Handle)
		if err != nil {
			return nil, fmt.Errorf("invalid handle %q: %w", p.Handle, err)
		}
		if !common.IsHexAddress(p.ContractAddress) {
			return nil, fmt.Errorf("invalid contract address %q", p.ContractAddress)
		}
		pairs = append(pairs, coprocessor.HandleContractPair{
			Handle:   handle,
			Contract: common.HexToAddress(p.ContractAddress),
		})
	}

	contracts := make([]common.Address, 0, len(wire.ContractAddresses))
	for _, c := range wire.ContractAddresses {
		if !common.IsHexAddress(c) {
			return nil, fmt.Errorf("invalid authorized contract address %q", c)
		}
		contracts = append(contracts, common.HexToAddress(c))
	}

	publicKey, err := hexutil.Decode(wire.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	signature, err := hexutil.Decode(wire.Signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}
	start, err := strconv.ParseUint(wire.StartTimestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid start timestamp: %w", err)
	}
	days, err := strconv.ParseUint(wire.DurationDays, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid duration: %w", err)
	}

	return &coprocessor.DecryptRequest{
		Pairs:          pairs,
		User:           common.HexToAddress(wire.UserAddress),
		PublicKey:      publicKey,
		Signature:      signature,
		Contracts:      contracts,
		StartTimestamp: start,
		DurationDays:   days,
	}, nil
}

// statusForError maps protocol errors onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, planetbounce.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, planetbounce.ErrResultNotReady),
		errors.Is(err, coprocessor.ErrUnknownHandle):
		return http.StatusNotFound
	case errors.Is(err, planetbounce.ErrEncryptionFailed),
		errors.Is(err, planetbounce.ErrInvalidProof),
		errors.Is(err, planetbounce.ErrDecryptionIncomplete):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// requestID derives a stable trace id from the request body.
func requestID(body []byte) ids.ID {
	return ids.ID(crypto.Keccak256Hash(body))
}

func writeJSON(log *zap.Logger, w http.ResponseWriter, v interface{}) {
	resp, err := json.Marshal(v)
	if err != nil {
		writeJSONError(log, w, http.StatusInternalServerError, "failed to marshal response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Error("error writing response", zap.Error(err))
	}
}

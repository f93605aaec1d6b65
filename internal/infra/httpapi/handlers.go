package httpapi

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cpoe/internal/domain"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type registerRequest struct {
	Credential string `json:"credential"`
	ProofOnly  bool   `json:"proof_only"`
}

type receiptResponse struct {
	EntryID  string `json:"entry_id"`
	LogID    string `json:"log_id"`
	Proof    string `json:"proof"`
	IssuedAt string `json:"issued_at"`
}

type registerResponse struct {
	EntryID          string          `json:"entry_id"`
	StatementHash    string          `json:"statement_hash"`
	TreeSize         int64           `json:"tree_size"`
	TreeHash         string          `json:"tree_hash"`
	ParentHash       string          `json:"parent_hash,omitempty"`
	ProofOnly        bool            `json:"proof_only"`
	RegistrationTime string          `json:"registration_time"`
	Receipt          receiptResponse `json:"receipt"`
}

type verifyRequest struct {
	Credential string `json:"credential"`
}

type entryResponse struct {
	EntryID          string                  `json:"entry_id"`
	RegistrationTime string                  `json:"registration_time"`
	TreeSize         int64                   `json:"tree_size"`
	ProofOnly        bool                    `json:"proof_only"`
	Issuer           string                  `json:"issuer,omitempty"`
	Scope            string                  `json:"scope,omitempty"`
	Provenance       *domain.Provenance      `json:"provenance,omitempty"`
	Summary          *domain.EvidenceSummary `json:"summary,omitempty"`
}

func (s *Server) handleRegister(c *gin.Context) {
	if !s.enforceRateLimit(c, "register") {
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "MALFORMED_INPUT", "invalid request body")
		return
	}
	if req.Credential == "" {
		writeErrorCode(c, http.StatusBadRequest, "MALFORMED_INPUT", "credential is required")
		return
	}
	entry, receipt, err := s.log.Register(c.Request.Context(), []byte(req.Credential), domain.RegisterOptions{
		ProofOnly: req.ProofOnly,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, registerResponse{
		EntryID:          entry.EntryID,
		StatementHash:    hex.EncodeToString(entry.StatementHash),
		TreeSize:         entry.TreeSize,
		TreeHash:         hex.EncodeToString(entry.TreeHash),
		ParentHash:       hex.EncodeToString(entry.ParentHash),
		ProofOnly:        entry.ProofOnly(),
		RegistrationTime: entry.RegistrationTime.Format(time.RFC3339),
		Receipt:          toReceiptResponse(*receipt),
	})
}

func (s *Server) handleVerify(c *gin.Context) {
	if s.verifier == nil {
		writeErrorCode(c, http.StatusNotImplemented, "VERIFIER_DISABLED", "no verifier configured")
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "MALFORMED_INPUT", "invalid request body")
		return
	}
	result, err := s.verifier.Verify(c.Request.Context(), req.Credential)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListEntries(c *gin.Context) {
	query := domain.EntryQuery{
		Limit:     intQuery(c, "limit"),
		Offset:    intQuery(c, "offset"),
		Issuer:    c.Query("issuer"),
		Framework: c.Query("framework"),
		Source:    c.Query("source"),
	}
	entries, err := s.log.ListEntries(c.Request.Context(), query)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entryResponse{
			EntryID:          entry.EntryID,
			RegistrationTime: entry.RegistrationTime.Format(time.RFC3339),
			TreeSize:         entry.TreeSize,
			ProofOnly:        entry.ProofOnly,
			Issuer:           entry.Issuer,
			Scope:            entry.Scope,
			Provenance:       entry.Provenance,
			Summary:          entry.Summary,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

func (s *Server) handleReceipt(c *gin.Context) {
	receipt, err := s.log.GetReceipt(c.Request.Context(), c.Param("entry_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReceiptResponse(*receipt))
}

func (s *Server) handleLogInfo(c *gin.Context) {
	info := gin.H{
		"log_id":   s.log.LogID,
		"strategy": s.log.Tree.Name(),
	}
	if s.log.Key != nil {
		info["public_key"] = base64.RawURLEncoding.EncodeToString(s.log.Key.Public)
	}
	tail, err := s.log.Store.Tail(c.Request.Context())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		info["tree_size"] = 0
	case err != nil:
		writeError(c, err)
		return
	default:
		info["tree_size"] = tail.TreeSize
		info["tree_hash"] = hex.EncodeToString(tail.TreeHash)
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleDIDDocument(c *gin.Context) {
	if s.didDoc == nil {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "no identity document configured")
		return
	}
	c.JSON(http.StatusOK, s.didDoc)
}

func toReceiptResponse(receipt domain.Receipt) receiptResponse {
	return receiptResponse{
		EntryID:  receipt.EntryID,
		LogID:    receipt.LogID,
		Proof:    base64.RawURLEncoding.EncodeToString(receipt.Proof),
		IssuedAt: receipt.IssuedAt.Format(time.RFC3339),
	}
}

func intQuery(c *gin.Context, key string) int {
	v := c.Query(key)
	if v == "" {
		return 0
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrMalformedInput):
		status, code = http.StatusBadRequest, "MALFORMED_INPUT"
	case errors.Is(err, domain.ErrExpired):
		status, code = http.StatusBadRequest, "CREDENTIAL_EXPIRED"
	case errors.Is(err, domain.ErrInvalidDID):
		status, code = http.StatusBadRequest, "INVALID_DID"
	case errors.Is(err, domain.ErrKeyNotFound):
		status, code = http.StatusBadRequest, "KEY_NOT_FOUND"
	case errors.Is(err, domain.ErrSignatureInvalid):
		status, code = http.StatusBadRequest, "SIGNATURE_INVALID"
	case errors.Is(err, domain.ErrPolicyDenied):
		status, code = http.StatusForbidden, "POLICY_DENIED"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrWriteConflict):
		status, code = http.StatusConflict, "WRITE_CONFLICT"
	case errors.Is(err, domain.ErrIdentityUnreachable):
		status, code = http.StatusBadGateway, "IDENTITY_UNREACHABLE"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}

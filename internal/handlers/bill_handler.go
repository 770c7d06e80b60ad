package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/damir-m/splitmate/internal/models"
	"github.com/damir-m/splitmate/internal/services"
	"github.com/damir-m/splitmate/pkg/logger"
	"github.com/damir-m/splitmate/pkg/middleware"
)

// BillHandler manages HTTP endpoints for the bill ledger.
type BillHandler struct {
	Service *services.BillService
}

// NewBillHandler initializes a new BillHandler.
func NewBillHandler(service *services.BillService) *BillHandler {
	return &BillHandler{Service: service}
}

// billResponse is a bill with its settlement status derived from
// participant state rather than the stored copy.
type billResponse struct {
	models.Bill
	Status string `json:"status"`
}

func toBillResponse(bill models.Bill) billResponse {
	return billResponse{Bill: bill, Status: bill.DerivedStatus()}
}

// CreateBillHandler creates a bill split across the caller and the
// selected friends.
func (h *BillHandler) CreateBillHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		logger.Log.Warn("Unauthorized attempt to create bill")
		return
	}

	var body struct {
		Description  string   `json:"description"`
		TotalAmount  float64  `json:"totalAmount"`
		FriendIDs    []string `json:"friendIds"`
		PaymentQrURL string   `json:"paymentQrUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		logger.Log.Warnf("Failed to decode create bill body: %v", err)
		return
	}
	defer r.Body.Close()

	creatorID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	friendIDs := make([]primitive.ObjectID, 0, len(body.FriendIDs))
	for _, hex := range body.FriendIDs {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			http.Error(w, "Invalid friend ID", http.StatusBadRequest)
			logger.Log.Warnf("Invalid friend ID in create bill: %v", err)
			return
		}
		friendIDs = append(friendIDs, id)
	}

	bill, err := h.Service.CreateBill(r.Context(), creatorID, services.CreateBillInput{
		Description:  body.Description,
		TotalAmount:  body.TotalAmount,
		FriendIDs:    friendIDs,
		PaymentQrURL: body.PaymentQrURL,
	})
	if err != nil {
		logger.Log.Warnf("Failed to create bill for user %s: %v", claims.UserID, err)
		writeError(w, err)
		return
	}

	logger.Log.Infof("User %s created bill %s", claims.UserID, bill.ID.Hex())
	writeJSON(w, http.StatusCreated, toBillResponse(*bill))
}

// MarkPaidHandler flips the caller's own payment flag on the bill.
func (h *BillHandler) MarkPaidHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		logger.Log.Warn("Unauthorized attempt to mark bill paid")
		return
	}

	vars := mux.Vars(r)
	billID, err := primitive.ObjectIDFromHex(vars["id"])
	if err != nil {
		http.Error(w, "Invalid bill ID", http.StatusBadRequest)
		logger.Log.Warnf("Invalid bill ID: %v", err)
		return
	}

	callerID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	if err := h.Service.MarkPaid(r.Context(), billID, callerID); err != nil {
		logger.Log.Warnf("Failed to mark bill %s paid for user %s: %v", vars["id"], claims.UserID, err)
		writeError(w, err)
		return
	}

	logger.Log.Infof("User %s marked bill %s paid", claims.UserID, vars["id"])
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Payment marked as complete",
	})
}

// GetPendingBillsHandler returns the caller's unpaid bills, newest first.
func (h *BillHandler) GetPendingBillsHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		logger.Log.Warn("Unauthorized attempt to list pending bills")
		return
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	bills, err := h.Service.ListPendingBills(r.Context(), userID)
	if err != nil {
		logger.Log.Errorf("Failed to fetch pending bills for user %s: %v", claims.UserID, err)
		writeError(w, err)
		return
	}

	responses := make([]billResponse, 0, len(bills))
	for _, bill := range bills {
		responses = append(responses, toBillResponse(bill))
	}

	writeJSON(w, http.StatusOK, responses)
}

package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/service"
)

type walletResponse struct {
	Wallet       *domain.Wallet       `json:"wallet"`
	Transactions []domain.Transaction `json:"transactions"`
}

type WalletHandler struct {
	walletSvc service.WalletService
}

func NewWalletHandler(walletSvc service.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

func (h *WalletHandler) Register(r *mux.Router) {
	r.HandleFunc("/wallet", h.GetWallet).Methods(http.MethodGet)
}

func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	accountID, _ := AccountIDFromContext(r.Context())
	wallet, txs, err := h.walletSvc.GetWallet(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, walletResponse{Wallet: wallet, Transactions: txs})
}

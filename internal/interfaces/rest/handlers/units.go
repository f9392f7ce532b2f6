package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/reservepay/reservepay/internal/application"
	"github.com/reservepay/reservepay/internal/application/services"
	"github.com/reservepay/reservepay/internal/domain"
)

type upsertUnitRequest struct {
	UnitNumber  string   `json:"unit_number" validate:"required"`
	Site        string   `json:"site" validate:"required"`
	Location    string   `json:"location"`
	MonthlyRate string   `json:"monthly_rate" validate:"required"`
	Features    []string `json:"features"`
}

func (r *upsertUnitRequest) toCommand() (services.UpsertUnitCommand, error) {
	rate := decimal.Zero
	if r.MonthlyRate != "" {
		var err error
		rate, err = decimal.NewFromString(r.MonthlyRate)
		if err != nil {
			return services.UpsertUnitCommand{}, application.NewInvalidInputError(errors.New("monthly_rate must be a decimal amount"))
		}
	}
	return services.UpsertUnitCommand{
		UnitNumber:  r.UnitNumber,
		Site:        r.Site,
		Location:    r.Location,
		MonthlyRate: rate,
		Features:    r.Features,
	}, nil
}

func (h *Handlers) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req upsertUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, application.NewInvalidInputError(errors.New("invalid request body")))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondWithError(w, application.NewInvalidInputError(err))
		return
	}

	cmd, err := req.toCommand()
	if err != nil {
		respondWithError(w, err)
		return
	}

	unit, err := h.units.CreateUnit(r.Context(), cmd)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toUnitView(unit))
}

func (h *Handlers) GetUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := h.units.GetUnit(r.Context(), chi.URLParam(r, "unitID"))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toUnitView(unit))
}

func (h *Handlers) ListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.units.ListUnits(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}

	views := make([]unitView, 0, len(units))
	for _, u := range units {
		views = append(views, toUnitView(u))
	}
	respondWithJSON(w, http.StatusOK, views)
}

func (h *Handlers) UpdateUnit(w http.ResponseWriter, r *http.Request) {
	var req upsertUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, application.NewInvalidInputError(errors.New("invalid request body")))
		return
	}

	cmd, err := req.toCommand()
	if err != nil {
		respondWithError(w, err)
		return
	}

	unit, err := h.units.UpdateUnit(r.Context(), chi.URLParam(r, "unitID"), cmd)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toUnitView(unit))
}

func (h *Handlers) DeleteUnit(w http.ResponseWriter, r *http.Request) {
	if err := h.units.DeleteUnit(r.Context(), chi.URLParam(r, "unitID")); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, nil)
}

type availabilityView struct {
	UnitID    string `json:"unit_id"`
	Status    string `json:"status"`
	Available bool   `json:"available"`
}

// UnitAvailability is the lightweight pre-booking check: can this unit be
// booked right now.
func (h *Handlers) UnitAvailability(w http.ResponseWriter, r *http.Request) {
	unit, err := h.units.GetUnit(r.Context(), chi.URLParam(r, "unitID"))
	if err != nil {
		respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, availabilityView{
		UnitID:    unit.ID,
		Status:    string(unit.Status),
		Available: unit.Status == domain.UnitAvailable,
	})
}

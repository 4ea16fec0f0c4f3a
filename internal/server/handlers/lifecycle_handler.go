package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/internal/service/lifecycle"
)

// LifecycleHandler exposes the animal, part and product state machines
// over HTTP.
type LifecycleHandler struct {
	svc    *lifecycle.Service
	logger *zap.Logger
}

// NewLifecycleHandler constructs the HTTP handler adapter.
func NewLifecycleHandler(svc *lifecycle.Service, logger *zap.Logger) *LifecycleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleHandler{svc: svc, logger: logger}
}

type registerAnimalRequest struct {
	FarmerID     string  `json:"farmer_id" binding:"required"`
	Name         string  `json:"name"`
	Species      string  `json:"species" binding:"required"`
	Breed        string  `json:"breed"`
	AgeMonths    float64 `json:"age_months"`
	Gender       string  `json:"gender"`
	HealthStatus string  `json:"health_status"`
	LiveWeight   float64 `json:"live_weight" binding:"required"`
}

// RegisterAnimal creates a new animal under a farmer.
func (h *LifecycleHandler) RegisterAnimal(c *gin.Context) {
	var req registerAnimalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	animal, err := h.svc.RegisterAnimal(c.Request.Context(), actorID(c), lifecycle.RegisterAnimalInput{
		FarmerID:     req.FarmerID,
		Name:         req.Name,
		Species:      models.Species(req.Species),
		Breed:        req.Breed,
		AgeMonths:    req.AgeMonths,
		Gender:       req.Gender,
		HealthStatus: req.HealthStatus,
		LiveWeight:   req.LiveWeight,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, animal)
}

type transferRequest struct {
	Destination string `json:"destination" binding:"required"`
}

// TransferAnimal hands an animal off to a processing unit.
func (h *LifecycleHandler) TransferAnimal(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	animal, err := h.svc.TransferAnimal(c.Request.Context(), actorID(c), c.Param("id"), req.Destination)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, animal)
}

// ReceiveAnimal confirms receipt at the destination unit.
func (h *LifecycleHandler) ReceiveAnimal(c *gin.Context) {
	animal, err := h.svc.ReceiveAnimal(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, animal)
}

type slaughterRequest struct {
	CarcassType  string             `json:"carcass_type" binding:"required"`
	Weights      map[string]float64 `json:"weights" binding:"required"`
	AbattoirName string             `json:"abattoir_name"`
}

// Slaughter records the slaughter and the derived parts.
func (h *LifecycleHandler) Slaughter(c *gin.Context) {
	var req slaughterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	weights := make(map[models.PartType]float64, len(req.Weights))
	for k, v := range req.Weights {
		weights[models.PartType(k)] = v
	}

	animal, parts, err := h.svc.Slaughter(c.Request.Context(), actorID(c), c.Param("id"), lifecycle.SlaughterInput{
		CarcassType:  models.CarcassType(req.CarcassType),
		Weights:      weights,
		AbattoirName: req.AbattoirName,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"animal": animal, "parts": parts})
}

// MarkProcessed closes out a slaughtered animal.
func (h *LifecycleHandler) MarkProcessed(c *gin.Context) {
	animal, err := h.svc.MarkProcessed(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, animal)
}

// GetAnimal returns one animal.
func (h *LifecycleHandler) GetAnimal(c *gin.Context) {
	animal, err := h.svc.GetAnimal(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, animal)
}

// TransferPart ships a slaughter part to a processing unit.
func (h *LifecycleHandler) TransferPart(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	part, err := h.svc.TransferPart(c.Request.Context(), actorID(c), c.Param("id"), req.Destination)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, part)
}

// ReceivePart confirms receipt of a part.
func (h *LifecycleHandler) ReceivePart(c *gin.Context) {
	part, err := h.svc.ReceivePart(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, part)
}

type createProductRequest struct {
	ProcessingUnitID string  `json:"processing_unit_id" binding:"required"`
	AnimalID         string  `json:"animal_id"`
	Parts            []struct {
		PartID       string  `json:"part_id"`
		QuantityUsed float64 `json:"quantity_used"`
	} `json:"parts"`
	Name        string  `json:"name" binding:"required"`
	BatchNumber string  `json:"batch_number"`
	Type        string  `json:"type"`
	Quantity    float64 `json:"quantity" binding:"required"`
	Weight      float64 `json:"weight" binding:"required"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
}

// CreateProduct creates a product from an animal or from parts.
func (h *LifecycleHandler) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	in := lifecycle.CreateProductInput{
		ProcessingUnitID: req.ProcessingUnitID,
		AnimalID:         req.AnimalID,
		Name:             req.Name,
		BatchNumber:      req.BatchNumber,
		Type:             models.ProductType(req.Type),
		Quantity:         req.Quantity,
		Weight:           req.Weight,
		Price:            req.Price,
		Description:      req.Description,
		Location:         req.Location,
	}
	for _, p := range req.Parts {
		in.Parts = append(in.Parts, lifecycle.PartUse{PartID: p.PartID, QuantityUsed: p.QuantityUsed})
	}

	product, err := h.svc.CreateProduct(c.Request.Context(), actorID(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// TransferProduct ships a product to a shop.
func (h *LifecycleHandler) TransferProduct(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	product, err := h.svc.TransferProduct(c.Request.Context(), actorID(c), c.Param("id"), req.Destination)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type receiveProductRequest struct {
	Quantity float64 `json:"quantity" binding:"required"`
}

// ReceiveProduct confirms receipt of some or all of a transfer.
func (h *LifecycleHandler) ReceiveProduct(c *gin.Context) {
	var req receiveProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	product, err := h.svc.ReceiveProduct(c.Request.Context(), actorID(c), c.Param("id"), req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// SellProduct records the terminal sale.
func (h *LifecycleHandler) SellProduct(c *gin.Context) {
	product, err := h.svc.SellProduct(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// ConsumeProduct records the terminal consumption.
func (h *LifecycleHandler) ConsumeProduct(c *gin.Context) {
	product, err := h.svc.ConsumeProduct(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type timelineEventRequest struct {
	Stage    string `json:"stage" binding:"required"`
	Action   string `json:"action" binding:"required"`
	Location string `json:"location"`
}

// RecordTimelineEvent appends a custom stage event to a product.
func (h *LifecycleHandler) RecordTimelineEvent(c *gin.Context) {
	var req timelineEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.svc.RecordTimelineEvent(c.Request.Context(), actorID(c), c.Param("id"),
		models.ProcessingStage(req.Stage), req.Action, req.Location)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

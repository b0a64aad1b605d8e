// internal/server/tools.go
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-gonic/gin"

	"calorie-chat/internal/apierr"
	"calorie-chat/internal/models"
)

type AnalyzeMealParams struct {
	Text string `json:"text" description:"Free-text description of what was eaten"`
}

type SaveMealParams struct {
	UserID string       `json:"user_id" description:"Owner of the meal"`
	Meal   *models.Meal `json:"meal" description:"Meal returned by analyze_meal, possibly edited"`
}

type GetMealsParams struct {
	UserID      string `json:"user_id" description:"Owner of the meals"`
	Date        string `json:"date,omitempty" description:"Day to list (YYYY-MM-DD)"`
	Limit       int    `json:"limit,omitempty" description:"Maximum number of meals to return"`
	MinCalories *int   `json:"min_calories,omitempty" description:"Only meals with at least this many kcal"`
	MaxCalories *int   `json:"max_calories,omitempty" description:"Only meals with at most this many kcal"`
}

type UpdateMealParams struct {
	MealID  string      `json:"meal_id" description:"ID of the persisted meal"`
	Updates mealUpdates `json:"updates" description:"note, meal_time and/or products to replace"`
}

var toolNames = []string{"analyze_meal", "save_meal", "get_meals", "update_meal"}

type toolHandler func(r *http.Request, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

func (s *MealLogServer) tools() map[string]toolHandler {
	return map[string]toolHandler{
		"analyze_meal": s.handleAnalyzeMealTool,
		"save_meal":    s.handleSaveMealTool,
		"get_meals":    s.handleGetMealsTool,
		"update_meal":  s.handleUpdateMealTool,
	}
}

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return apierr.BadRequest("invalid parameters", err)
	}

	return nil
}

// handleMCP serves tools/call style requests over plain HTTP.
func (s *MealLogServer) handleMCP(w http.ResponseWriter, r *http.Request) {
	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeToolError(w, apierr.BadRequest("invalid JSON", err))
		return
	}

	handler, ok := s.tools()[request.Name]
	if !ok {
		writeToolError(w, apierr.NotFound(fmt.Sprintf("unknown tool: %s", request.Name), nil))
		return
	}

	result, err := handler(r, &request)
	if err != nil {
		s.log.Warn("tool call failed", "tool", request.Name, "error", err)
		writeToolError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.log.Error("failed to encode tool response", "tool", request.Name, "error", err)
	}
}

func writeToolError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apierr.StatusOf(err))
	_ = json.NewEncoder(w).Encode(apierr.BodyOf(err))
}

// handleServerInfo lists the server identity and its tool names.
func (s *MealLogServer) handleServerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"serverInfo": serverInfo, "tools": toolNames})
}

func (s *MealLogServer) handleAnalyzeMealTool(r *http.Request, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params AnalyzeMealParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	res, err := s.analyzeMeal(r.Context(), params.Text)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(res)
}

func (s *MealLogServer) handleSaveMealTool(r *http.Request, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params SaveMealParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	rec, err := s.saveMeal(r.Context(), params.UserID, params.Meal)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(rec)
}

func (s *MealLogServer) handleGetMealsTool(r *http.Request, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetMealsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	meals, err := s.getMeals(r.Context(), mealsQuery{
		UserID:      params.UserID,
		Date:        params.Date,
		Limit:       params.Limit,
		MinCalories: params.MinCalories,
		MaxCalories: params.MaxCalories,
	})
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(meals)
}

func (s *MealLogServer) handleUpdateMealTool(r *http.Request, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params UpdateMealParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	rec, err := s.updateMeal(r.Context(), params.MealID, params.Updates)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(rec)
}

func (s *MealLogServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}

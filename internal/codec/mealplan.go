package codec

import (
	"fmt"
	"time"

	"github.com/example/pantrysync/internal/mealplan"
	"github.com/example/pantrysync/internal/models"
	"github.com/example/pantrysync/pkg/database"
)

// MealPlan encodes meal plan day documents, keyed by their date.
type MealPlan struct {
	ClientID string
}

func (MealPlan) Key(d models.DayPlan) string { return d.Date }

func (c MealPlan) Encode(d models.DayPlan) map[string]interface{} {
	meals := make([]interface{}, 0, len(d.Meals))
	for _, m := range d.Meals {
		meals = append(meals, map[string]interface{}{
			"id":     m.ID,
			"recipe": EncodeSnapshot(m.Recipe),
		})
	}
	data := map[string]interface{}{"meals": meals}
	if t, err := time.Parse(mealplan.DateLayout, d.Date); err == nil {
		data["date"] = t
	}
	return stamp(data, c.ClientID)
}

func (MealPlan) Decode(doc database.Document) (models.DayPlan, error) {
	if _, err := time.Parse(mealplan.DateLayout, doc.ID); err != nil {
		return models.DayPlan{}, malformed(doc, "document id is not a date")
	}
	day := models.DayPlan{Date: doc.ID, Day: mealplan.DayName(doc.ID), Meals: []models.MealPlanItem{}}
	raw, _ := doc.Data["meals"].([]interface{})
	for i, e := range raw {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		id := str(m["id"])
		if id == "" {
			id = fmt.Sprintf("%s-%d", doc.ID, i)
		}
		day.Meals = append(day.Meals, models.MealPlanItem{ID: id, Recipe: DecodeSnapshot(m["recipe"])})
	}
	return day, nil
}

package main

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/nutrilog/backend/config"
	"github.com/nutrilog/backend/internal/database"
	"github.com/nutrilog/backend/internal/model"
	"github.com/nutrilog/backend/internal/service"
)

const seedDays = 7 // days of history to generate

var sampleMeals = []struct {
	Name     string
	Notes    string
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
	MealType string
}{
	{"Oatmeal with Berries", "rolled oats, blueberries, honey", 320, 11, 58, 6, model.MealTypeBreakfast},
	{"Greek Yogurt Parfait", "yogurt, granola, strawberries", 280, 18, 38, 7, model.MealTypeBreakfast},
	{"Chicken Caesar Salad", "grilled chicken, romaine, parmesan", 520, 42, 18, 30, model.MealTypeLunch},
	{"Turkey Sandwich", "whole wheat, turkey, swiss, mustard", 430, 28, 46, 14, model.MealTypeLunch},
	{"Salmon with Rice", "baked salmon, jasmine rice, broccoli", 610, 45, 52, 22, model.MealTypeDinner},
	{"Beef Stir Fry", "flank steak, peppers, soy, noodles", 680, 38, 64, 28, model.MealTypeDinner},
	{"Apple with Peanut Butter", "", 270, 8, 29, 16, model.MealTypeSnack},
	{"Protein Shake", "whey, banana, almond milk", 240, 30, 22, 5, model.MealTypeSnack},
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.RunMigrations(db, "migrations"); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	meals := service.NewMealService(db)
	ctx := context.Background()

	seeded := 0
	for day := 0; day < seedDays; day++ {
		// Three to five meals per day keeps the frequency ranking
		// interesting.
		count := 3 + rand.Intn(3)
		for i := 0; i < count; i++ {
			sample := sampleMeals[rand.Intn(len(sampleMeals))]

			meal, err := meals.Save(ctx, service.MealInput{
				Name:  sample.Name,
				Notes: sample.Notes,
				Nutrition: &model.NutritionSummary{
					Calories: sample.Calories,
					Protein:  sample.Protein,
					Carbs:    sample.Carbs,
					Fat:      sample.Fat,
				},
			})
			if err != nil {
				log.Fatalf("failed to seed meal %q: %v", sample.Name, err)
			}

			// Spread the entries across the past week.
			backdated := time.Now().AddDate(0, 0, -day).Add(-time.Duration(rand.Intn(10)) * time.Hour)
			if err := db.Model(meal).Update("timestamp", backdated).Error; err != nil {
				log.Fatalf("failed to backdate meal %q: %v", sample.Name, err)
			}
			seeded++
		}
	}

	log.Printf("seeded %d meals across %d days", seeded, seedDays)
}

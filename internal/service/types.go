// Package service contains the business logic for the farm geometry
// editor: mapping mutations, water source refresh orchestration, and
// the change event bus the live editor subscribes to.
package service

import "time"

// FarmStats summarizes a farm's mapping for the stats panel.
type FarmStats struct {
	FarmID           string     `json:"farmId" doc:"Owning farm identifier" example:"farm-42"`
	BoundaryAcres    float64    `json:"boundaryAcres" doc:"Boundary area in acres, 0 when no boundary" example:"160.2"`
	SectionCount     int        `json:"sectionCount" doc:"Number of crop sections" example:"4"`
	SectionAcres     float64    `json:"sectionAcres" doc:"Total section area in acres" example:"118.6"`
	WaterSourceCount int        `json:"waterSourceCount" doc:"Known nearby water sources" example:"12"`
	WaterFetchedAt   *time.Time `json:"waterFetchedAt,omitempty" doc:"When provider data was last refreshed"`
}

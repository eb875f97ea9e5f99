package models

import (
	"strconv"
	"time"
)

// AttractionHeader is the fixed column schema for attraction output.
var AttractionHeader = []string{
	"poi_id", "poi_name", "district_name", "zone_name", "sight_level", "heat_score",
	"comment_count", "comment_score", "distance", "tags", "short_features", "is_free",
	"price", "price_type", "detail_url", "district_id", "scraped_at",
}

// Attraction is one card of a district's attraction listing.
type Attraction struct {
	POIID         int64     `json:"poi_id" validate:"required"`
	Name          string    `json:"poi_name" validate:"required"`
	DistrictName  string    `json:"district_name"`
	ZoneName      string    `json:"zone_name"`
	SightLevel    string    `json:"sight_level"`
	HeatScore     string    `json:"heat_score"`
	CommentCount  string    `json:"comment_count"`
	CommentScore  string    `json:"comment_score"`
	Distance      string    `json:"distance"`
	Tags          string    `json:"tags"`
	ShortFeatures string    `json:"short_features"`
	IsFree        bool      `json:"is_free"`
	Price         string    `json:"price"`
	PriceType     string    `json:"price_type"`
	DetailURL     string    `json:"detail_url"`
	DistrictID    int64     `json:"district_id"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

func (a *Attraction) Kind() string { return "attractions" }

func (a *Attraction) Key() string { return strconv.FormatInt(a.POIID, 10) }

func (a *Attraction) Header() []string { return AttractionHeader }

func (a *Attraction) Row() []string {
	return []string{
		strconv.FormatInt(a.POIID, 10),
		a.Name,
		a.DistrictName,
		a.ZoneName,
		a.SightLevel,
		a.HeatScore,
		a.CommentCount,
		a.CommentScore,
		a.Distance,
		a.Tags,
		a.ShortFeatures,
		strconv.FormatBool(a.IsFree),
		a.Price,
		a.PriceType,
		a.DetailURL,
		strconv.FormatInt(a.DistrictID, 10),
		formatTime(a.ScrapedAt),
	}
}

package parser

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/models"
)

const ackSuccess = "Success"

type attractionEnvelope struct {
	ResponseStatus *struct {
		Ack    string `json:"Ack"`
		Errors []struct {
			Message string `json:"Message"`
		} `json:"Errors"`
	} `json:"ResponseStatus"`
	AttractionList []struct {
		Card *attractionCard `json:"card"`
	} `json:"attractionList"`
	HasMore *bool `json:"hasMore"`
}

type attractionCard struct {
	POIID         flexString      `json:"poiId"`
	POIName       string          `json:"poiName"`
	DistrictName  string          `json:"districtName"`
	ZoneName      string          `json:"zoneName"`
	DisplayField  string          `json:"displayField"`
	SightLevelStr string          `json:"sightLevelStr"`
	HeatScore     flexString      `json:"heatScore"`
	CommentCount  flexString      `json:"commentCount"`
	CommentScore  flexString      `json:"commentScore"`
	DistanceStr   string          `json:"distanceStr"`
	TagNameList   json.RawMessage `json:"tagNameList"`
	ShortFeatures json.RawMessage `json:"shortFeatures"`
	IsFree        bool            `json:"isFree"`
	Price         flexString      `json:"price"`
	PriceTypeDesc string          `json:"priceTypeDesc"`
	DetailURLInfo json.RawMessage `json:"detailUrlInfo"`
}

// DecodeAttractions decodes an attraction listing response for a district.
// Entries without a card are skipped but still counted in Items. A missing
// hasMore flag means no further pages.
func DecodeAttractions(body []byte, districtID int64, scrapedAt time.Time) (Listing, error) {
	var env attractionEnvelope
	if err := decodeJSON(body, &env); err != nil {
		return Listing{}, err
	}
	if env.ResponseStatus == nil {
		return Listing{}, ErrMalformedPayload
	}
	if env.ResponseStatus.Ack != ackSuccess {
		msg := env.ResponseStatus.Ack
		if len(env.ResponseStatus.Errors) > 0 {
			msg = env.ResponseStatus.Errors[0].Message
		}
		return Listing{}, &APIError{Message: msg, Throttled: isThrottleMessage(msg)}
	}

	listing := Listing{
		Records:      make([]models.Record, 0, len(env.AttractionList)),
		Items:        len(env.AttractionList),
		HasMoreKnown: true,
	}
	for _, entry := range env.AttractionList {
		if entry.Card == nil {
			continue
		}
		listing.Records = append(listing.Records, entry.Card.toAttraction(districtID, scrapedAt))
	}
	if env.HasMore != nil {
		listing.HasMore = *env.HasMore
	}
	return listing, nil
}

func (c *attractionCard) toAttraction(districtID int64, scrapedAt time.Time) *models.Attraction {
	poiID, _ := strconv.ParseInt(string(c.POIID), 10, 64)
	zone := c.ZoneName
	if zone == "" {
		zone = c.DisplayField
	}

	var detail struct {
		URL string `json:"url"`
	}
	if len(c.DetailURLInfo) > 0 {
		_ = json.Unmarshal(c.DetailURLInfo, &detail)
	}

	return &models.Attraction{
		POIID:         poiID,
		Name:          c.POIName,
		DistrictName:  c.DistrictName,
		ZoneName:      zone,
		SightLevel:    c.SightLevelStr,
		HeatScore:     string(c.HeatScore),
		CommentCount:  string(c.CommentCount),
		CommentScore:  string(c.CommentScore),
		Distance:      c.DistanceStr,
		Tags:          joinList(c.TagNameList, "、"),
		ShortFeatures: joinList(c.ShortFeatures, "；"),
		IsFree:        c.IsFree,
		Price:         string(c.Price),
		PriceType:     c.PriceTypeDesc,
		DetailURL:     detail.URL,
		DistrictID:    districtID,
		ScrapedAt:     scrapedAt,
	}
}

// joinList joins a JSON array of scalars; anything else yields an empty string.
func joinList(raw json.RawMessage, sep string) string {
	if len(raw) == 0 {
		return ""
	}
	var items []flexString
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, string(item))
	}
	return strings.Join(parts, sep)
}

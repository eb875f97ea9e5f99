package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/models"
)

const attractionPage = `{
  "ResponseStatus": {"Ack": "Success"},
  "hasMore": false,
  "attractionList": [
    {
      "card": {
        "poiId": 76342,
        "poiName": "成都大熊猫繁育研究基地",
        "districtName": "成都",
        "zoneName": "",
        "displayField": "成华区",
        "sightLevelStr": "4A",
        "heatScore": "9.1",
        "commentCount": 51234,
        "commentScore": 4.7,
        "distanceStr": "距市中心10.2km",
        "tagNameList": ["亲子", "动物"],
        "shortFeatures": ["看国宝"],
        "isFree": false,
        "price": 55,
        "priceTypeDesc": "起",
        "detailUrlInfo": {"url": "https://you.ctrip.com/sight/76342.html"}
      }
    },
    {"card": null},
    {"card": {"poiId": "77", "poiName": "宽窄巷子", "isFree": true, "tagNameList": "n/a", "detailUrlInfo": []}}
  ]
}`

func TestDecodeAttractions(t *testing.T) {
	listing, err := DecodeAttractions([]byte(attractionPage), 104, time.Now())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !listing.HasMoreKnown || listing.HasMore {
		t.Fatalf("hasMore = %v/%v, want known false", listing.HasMore, listing.HasMoreKnown)
	}
	if len(listing.Records) != 2 || listing.Items != 3 {
		t.Fatalf("records = %d items = %d, want 2/3", len(listing.Records), listing.Items)
	}

	a := listing.Records[0].(*models.Attraction)
	if a.POIID != 76342 || a.ZoneName != "成华区" || a.CommentCount != "51234" || a.CommentScore != "4.7" {
		t.Fatalf("unexpected attraction: %+v", a)
	}
	if a.Tags != "亲子、动物" || a.ShortFeatures != "看国宝" {
		t.Fatalf("tags = %q features = %q", a.Tags, a.ShortFeatures)
	}
	if a.Price != "55" || a.DetailURL != "https://you.ctrip.com/sight/76342.html" || a.DistrictID != 104 {
		t.Fatalf("unexpected attraction: %+v", a)
	}

	b := listing.Records[1].(*models.Attraction)
	if b.POIID != 77 || !b.IsFree || b.Tags != "" || b.DetailURL != "" {
		t.Fatalf("unexpected attraction: %+v", b)
	}
	if len(b.Row()) != len(models.AttractionHeader) {
		t.Fatalf("row/header length mismatch")
	}
}

func TestDecodeAttractionsAckFailure(t *testing.T) {
	body := `{"ResponseStatus":{"Ack":"Failure","Errors":[{"Message":"访问频繁"}]}}`
	_, err := DecodeAttractions([]byte(body), 104, time.Now())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if !apiErr.Throttled || apiErr.Message != "访问频繁" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestDecodeAttractionsWithoutCards(t *testing.T) {
	body := `{"ResponseStatus":{"Ack":"Success"},"attractionList":[{"ad":{}},{"ad":{}}],"hasMore":true}`
	listing, err := DecodeAttractions([]byte(body), 104, time.Now())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listing.Records) != 0 || listing.Items != 2 {
		t.Fatalf("records = %d items = %d, want 0/2", len(listing.Records), listing.Items)
	}
	if !listing.HasMoreKnown || !listing.HasMore {
		t.Fatalf("hasMore = %v/%v, want known true", listing.HasMore, listing.HasMoreKnown)
	}
}

func TestDecodeAttractionsMissingHasMoreEndsListing(t *testing.T) {
	body := `{"ResponseStatus":{"Ack":"Success"},"attractionList":[{"card":{"poiId":1,"poiName":"a"}}]}`
	listing, err := DecodeAttractions([]byte(body), 104, time.Now())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !listing.HasMoreKnown || listing.HasMore {
		t.Fatalf("hasMore = %v/%v, want known false", listing.HasMore, listing.HasMoreKnown)
	}
}

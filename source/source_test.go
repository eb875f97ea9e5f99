package source

import (
	"encoding/json"
	"testing"

	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentsBody(t *testing.T) {
	src := &Comments{POIID: 76342, SortType: 3}
	body, err := src.Body(models.PageRequest{Index: 7, Size: 10}, "cid-1")
	require.NoError(t, err)

	var decoded struct {
		Arg  map[string]any `json:"arg"`
		Head map[string]any `json:"head"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.EqualValues(t, 7, decoded.Arg["pageIndex"])
	assert.EqualValues(t, 10, decoded.Arg["pageSize"])
	assert.EqualValues(t, 76342, decoded.Arg["poiId"])
	assert.EqualValues(t, 3, decoded.Arg["sortType"])
	assert.Equal(t, "cid-1", decoded.Head["cid"])
	assert.Equal(t, "09", decoded.Head["syscode"])

	assert.Equal(t, CommentsEndpoint, src.Endpoint())
	assert.Equal(t, "comments/76342", src.Name())
	assert.Equal(t, "https://you.ctrip.com/sight/76342.html", src.Referer())
}

func TestAttractionsBody(t *testing.T) {
	src := &Attractions{DistrictID: 104, SortType: 1, URL: "http://example.test/list"}
	body, err := src.Body(models.PageRequest{Index: 2, Size: 20}, "cid-2")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.EqualValues(t, 104, decoded["districtId"])
	assert.EqualValues(t, 2, decoded["index"])
	assert.EqualValues(t, 20, decoded["count"])
	assert.Equal(t, "product", decoded["returnModuleType"])
	assert.Equal(t, "http://example.test/list", src.Endpoint())
}

func TestCommentsDecodeStampsResource(t *testing.T) {
	src := &Comments{POIID: 5}
	listing, err := src.Decode([]byte(`{"code":200,"msg":"请求成功","result":{"items":[{"commentId":1}]}}`))
	require.NoError(t, err)
	require.Len(t, listing.Records, 1)
	assert.EqualValues(t, 5, listing.Records[0].(*models.Comment).POIID)
}

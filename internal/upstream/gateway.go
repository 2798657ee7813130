package upstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/byfnoel/collie/internal/domain"
	"github.com/byfnoel/collie/pkg/httpclient"
)

const (
	feedsPath      = "/feeds"
	itemsPath      = "/items"
	itemsCountPath = "/items/count"
)

// Gateway maps feed and item operations onto the upstream REST surface.
type Gateway struct {
	client *Client
}

func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

func (g *Gateway) CreateFeed(ctx context.Context, arg domain.FeedToCreate) error {
	resp, err := g.client.Post(ctx, feedsPath, arg)
	return checkStatus("create feed", resp, err)
}

func (g *Gateway) ReadAllFeeds(ctx context.Context) ([]domain.Feed, error) {
	resp, err := g.client.Get(ctx, feedsPath)
	feeds, err := decodeBody[[]domain.Feed]("read feeds", resp, err)
	if err != nil {
		return nil, err
	}
	if feeds == nil {
		feeds = []domain.Feed{}
	}
	return feeds, nil
}

// ReadFeed returns nil without error when the upstream answers with JSON null.
func (g *Gateway) ReadFeed(ctx context.Context, id int) (*domain.Feed, error) {
	resp, err := g.client.Get(ctx, feedPath(id))
	return decodeBody[*domain.Feed]("read feed", resp, err)
}

func (g *Gateway) UpdateFeed(ctx context.Context, arg domain.FeedToUpdate) error {
	resp, err := g.client.Patch(ctx, feedPath(arg.ID), arg)
	return checkStatus("update feed", resp, err)
}

func (g *Gateway) DeleteFeed(ctx context.Context, id int) error {
	resp, err := g.client.Delete(ctx, feedPath(id))
	return checkStatus("delete feed", resp, err)
}

func (g *Gateway) CreateItem(ctx context.Context, arg domain.ItemToCreate) error {
	resp, err := g.client.Post(ctx, itemsPath, arg)
	return checkStatus("create item", resp, err)
}

// ReadAllItems sends the filter as the JSON body of a GET request.
func (g *Gateway) ReadAllItems(ctx context.Context, opt domain.ItemReadOption) ([]domain.Item, error) {
	resp, err := g.client.GetWithBody(ctx, itemsPath, opt)
	items, err := decodeBody[[]domain.Item]("read items", resp, err)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Item{}
	}
	return items, nil
}

func (g *Gateway) CountAllItems(ctx context.Context, opt domain.ItemReadOption) (int64, error) {
	resp, err := g.client.GetWithBody(ctx, itemsCountPath, opt)
	return decodeBody[int64]("count items", resp, err)
}

func (g *Gateway) UpdateItem(ctx context.Context, arg domain.ItemToUpdate) error {
	resp, err := g.client.Patch(ctx, fmt.Sprintf("%s/%d", itemsPath, arg.ID), arg)
	return checkStatus("update item", resp, err)
}

func (g *Gateway) UpdateAllItems(ctx context.Context, arg domain.ItemToUpdateAll) error {
	resp, err := g.client.Patch(ctx, itemsPath, arg)
	return checkStatus("update items", resp, err)
}

func feedPath(id int) string {
	return fmt.Sprintf("%s/%d", feedsPath, id)
}

// checkStatus folds a client result into the gateway error taxonomy; the body of a
// successful mutation is ignored.
func checkStatus(op string, resp httpclient.Response, err error) error {
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode()) {
		return &ResourceError{Op: op, Status: resp.StatusCode(), Body: responseSnippet(resp.Body())}
	}
	return nil
}

func decodeBody[T any](op string, resp httpclient.Response, err error) (T, error) {
	var out T
	if err := checkStatus(op, resp, err); err != nil {
		return out, err
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return out, &MalformedResponseError{Op: op, Err: err}
	}
	return out, nil
}

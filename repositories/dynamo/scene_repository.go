package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/models"
	"github.com/maomaocong/audio-scene-api/services"
)

const (
	// sceneNameIndex is keyed by sceneName alone, so ownership is
	// enforced with a filter expression after the index read.
	sceneNameIndex = "sceneNameIndex"

	defaultPageSize = 20
	maxPageSize     = 100
)

// SceneRepository stores scenes in a DynamoDB table partitioned by user
type SceneRepository struct {
	api    API
	table  string
	logger *zap.Logger
}

// NewSceneRepository creates a new SceneRepository
func NewSceneRepository(api API, table string, logger *zap.Logger) *SceneRepository {
	return &SceneRepository{
		api:    api,
		table:  table,
		logger: logger,
	}
}

// Create stores a new scene
func (r *SceneRepository) Create(ctx context.Context, scene *models.Scene) error {
	item, err := attributevalue.MarshalMap(scene)
	if err != nil {
		return services.ErrInternal.Wrap(err)
	}

	_, err = r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		r.logger.Error("put scene failed",
			zap.String("user_id", scene.UserID),
			zap.Error(err))
		return services.ErrStoreUnavailable.Wrap(err)
	}
	return nil
}

// Get retrieves one scene within the owner's partition. A scene that
// exists under another user's partition is indistinguishable from one
// that does not exist.
func (r *SceneRepository) Get(ctx context.Context, userID, sceneID string) (*models.Scene, error) {
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       sceneKey(userID, sceneID),
	})
	if err != nil {
		return nil, services.ErrStoreUnavailable.Wrap(err)
	}
	if len(out.Item) == 0 {
		return nil, services.ErrSceneNotFound
	}

	var scene models.Scene
	if err := attributevalue.UnmarshalMap(out.Item, &scene); err != nil {
		return nil, services.ErrInternal.Wrap(err)
	}
	return &scene, nil
}

// List returns a page of the owner's scenes, newest first. The total
// is counted before any item is fetched so that an empty partition
// costs exactly one round trip.
func (r *SceneRepository) List(ctx context.Context, userID string, page, pageSize int) (*models.PaginatedScenes, error) {
	page, pageSize = clampPage(page, pageSize)

	base := dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		KeyConditionExpression: aws.String("userId = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	}

	return r.paginate(ctx, base, page, pageSize, false)
}

// ListByName returns a page of the owner's scenes with a given name.
// The read goes through the name index and filters on owner afterward,
// so the reported total counts other users' scenes with the same name.
func (r *SceneRepository) ListByName(ctx context.Context, userID, sceneName string, page, pageSize int) (*models.PaginatedScenes, error) {
	page, pageSize = clampPage(page, pageSize)

	base := dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(sceneNameIndex),
		KeyConditionExpression: aws.String("sceneName = :name"),
		FilterExpression:       aws.String("userId = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":name": &types.AttributeValueMemberS{Value: sceneName},
			":uid":  &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	}

	result, err := r.paginate(ctx, base, page, pageSize, true)
	if err != nil {
		return nil, err
	}
	result.TotalIsApproximate = true
	return result, nil
}

// Delete removes one scene from the owner's partition
func (r *SceneRepository) Delete(ctx context.Context, userID, sceneID string) error {
	_, err := r.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       sceneKey(userID, sceneID),
	})
	if err != nil {
		r.logger.Error("delete scene failed",
			zap.String("user_id", userID),
			zap.String("scene_id", sceneID),
			zap.Error(err))
		return services.ErrStoreUnavailable.Wrap(err)
	}
	return nil
}

// HealthCheck verifies the table is reachable
func (r *SceneRepository) HealthCheck(ctx context.Context) error {
	_, err := r.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.table),
	})
	if err != nil {
		return services.ErrStoreUnavailable.Wrap(err)
	}
	return nil
}

// paginate runs count-then-fetch over a query shape. The count pass
// resolves the total; a zero total short-circuits before any item
// read. Page positioning re-walks items from the start of the
// partition, so a page index past the end yields an empty page, never
// an error.
func (r *SceneRepository) paginate(ctx context.Context, base dynamodb.QueryInput, page, pageSize int, counted bool) (*models.PaginatedScenes, error) {
	total, err := r.countQuery(ctx, base)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return models.NewPaginatedScenes(nil, 0, page, pageSize), nil
	}

	offset := (page - 1) * pageSize
	startKey, exhausted, err := r.skipTo(ctx, base, offset)
	if err != nil {
		return nil, err
	}
	if exhausted {
		return models.NewPaginatedScenes(nil, total, page, pageSize), nil
	}

	items, err := r.fetchPage(ctx, base, startKey, pageSize)
	if err != nil {
		return nil, err
	}
	return models.NewPaginatedScenes(items, total, page, pageSize), nil
}

// countQuery resolves the total matching item count without reading
// item payloads. The loop follows LastEvaluatedKey because a COUNT
// query still pages at the storage read limit.
func (r *SceneRepository) countQuery(ctx context.Context, base dynamodb.QueryInput) (int64, error) {
	in := base
	in.Select = types.SelectCount

	var total int64
	for {
		out, err := r.api.Query(ctx, &in)
		if err != nil {
			return 0, services.ErrStoreUnavailable.Wrap(err)
		}
		total += int64(out.Count)
		if out.LastEvaluatedKey == nil {
			return total, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// skipTo advances past offset items and returns the key to resume
// from. exhausted is set when the partition ends before the offset.
func (r *SceneRepository) skipTo(ctx context.Context, base dynamodb.QueryInput, offset int) (map[string]types.AttributeValue, bool, error) {
	if offset == 0 {
		return nil, false, nil
	}

	in := base
	skipped := 0
	for skipped < offset {
		in.Limit = aws.Int32(int32(offset - skipped))
		out, err := r.api.Query(ctx, &in)
		if err != nil {
			return nil, false, services.ErrStoreUnavailable.Wrap(err)
		}
		skipped += len(out.Items)
		if out.LastEvaluatedKey == nil {
			return nil, true, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return in.ExclusiveStartKey, false, nil
}

// fetchPage reads up to pageSize items starting after startKey. With a
// filter expression a single query round can come back short or empty
// while more matches remain, so the loop continues until the page is
// full or the partition ends.
func (r *SceneRepository) fetchPage(ctx context.Context, base dynamodb.QueryInput, startKey map[string]types.AttributeValue, pageSize int) ([]models.Scene, error) {
	in := base
	in.ExclusiveStartKey = startKey

	items := make([]models.Scene, 0, pageSize)
	for len(items) < pageSize {
		in.Limit = aws.Int32(int32(pageSize - len(items)))
		out, err := r.api.Query(ctx, &in)
		if err != nil {
			return nil, services.ErrStoreUnavailable.Wrap(err)
		}

		var page []models.Scene
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, services.ErrInternal.Wrap(err)
		}
		items = append(items, page...)

		if out.LastEvaluatedKey == nil {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	if len(items) > pageSize {
		items = items[:pageSize]
	}
	return items, nil
}

func sceneKey(userID, sceneID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"userId":  &types.AttributeValueMemberS{Value: userID},
		"sceneId": &types.AttributeValueMemberS{Value: sceneID},
	}
}

func clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"reddit_river/internal/config"
	"reddit_river/internal/domain"
	"reddit_river/internal/service/mocks"
)

type SourceSyncServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller
	ctx  context.Context

	source    *mocks.MockSource
	sources   *mocks.MockSourceStore
	txManager *mocks.MockTransactionManager

	service *SourceSyncService
}

func (s *SourceSyncServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ctx = context.Background()

	s.source = mocks.NewMockSource(s.ctrl)
	s.sources = mocks.NewMockSourceStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)

	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	).AnyTimes()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.service = NewSourceSyncService(s.source, s.sources, s.txManager, logger, config.SyncConfig{SourcePages: 2})
}

func (s *SourceSyncServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSourceSyncServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SourceSyncServiceTestSuite))
}

func communities(next string, names ...string) *domain.SourcePage {
	p := &domain.SourcePage{Next: next}
	for _, n := range names {
		p.Sources = append(p.Sources, domain.RawSource{RedditName: n, Name: n + " title", Subscribers: 100})
	}
	return p
}

func (s *SourceSyncServiceTestSuite) TestSync_BulkInsertIntoEmptyStore() {
	s.source.EXPECT().FetchSourcePage(s.ctx, "").Return(communities("p2", "pics", "golang"), nil)
	s.source.EXPECT().FetchSourcePage(s.ctx, "p2").Return(communities("", "science", "pics"), nil)
	s.sources.EXPECT().CountRanked(s.ctx).Return(0, nil)

	var inserted []domain.Source
	s.sources.EXPECT().Insert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, src *domain.Source) (int64, error) {
			inserted = append(inserted, *src)
			return int64(len(inserted)), nil
		}).Times(3)

	stats, err := s.service.Sync(s.ctx, RunConfig{RunID: "r"})

	s.NoError(err)
	s.Equal(JobUpdateSources, stats.Job)
	s.Equal(3, stats.New)
	s.Require().Len(inserted, 3)
	s.Equal("pics", inserted[0].RedditName)
	s.Equal(1, inserted[0].Position)
	s.True(inserted[0].Active)
	s.Equal("science", inserted[2].RedditName)
	s.Equal(3, inserted[2].Position)
}

func (s *SourceSyncServiceTestSuite) TestSync_KnownSourceSwapsPosition() {
	s.source.EXPECT().FetchSourcePage(s.ctx, "").Return(communities("", "golang"), nil)
	s.sources.EXPECT().CountRanked(s.ctx).Return(2, nil)

	golang := &domain.Source{ID: 7, RedditName: "golang", Position: 2}
	pics := &domain.Source{ID: 3, RedditName: "pics", Position: 1}

	s.sources.EXPECT().GetByName(s.ctx, "golang").Return(golang, nil)
	s.sources.EXPECT().UpdateStats(s.ctx, int64(7), "golang title", "", int64(100)).Return(nil)
	s.sources.EXPECT().FindByPosition(s.ctx, 1).Return(pics, nil)
	s.sources.EXPECT().UpdatePosition(s.ctx, int64(7), 1).Return(nil)
	s.sources.EXPECT().UpdatePosition(s.ctx, int64(3), 2).Return(nil)

	stats, err := s.service.Sync(s.ctx, RunConfig{})

	s.NoError(err)
	s.Equal(1, stats.Updated)
	s.Equal(0, stats.New)
}

func (s *SourceSyncServiceTestSuite) TestSync_KnownSourceSamePosition() {
	s.source.EXPECT().FetchSourcePage(s.ctx, "").Return(communities("", "pics"), nil)
	s.sources.EXPECT().CountRanked(s.ctx).Return(1, nil)
	s.sources.EXPECT().GetByName(s.ctx, "pics").Return(&domain.Source{ID: 3, RedditName: "pics", Position: 1}, nil)
	s.sources.EXPECT().UpdateStats(s.ctx, int64(3), "pics title", "", int64(100)).Return(nil)

	stats, err := s.service.Sync(s.ctx, RunConfig{})

	s.NoError(err)
	s.Equal(1, stats.Updated)
}

func (s *SourceSyncServiceTestSuite) TestSync_NewSourceMovesOccupantToEnd() {
	s.source.EXPECT().FetchSourcePage(s.ctx, "").Return(communities("", "rust", "zig"), nil)
	s.sources.EXPECT().CountRanked(s.ctx).Return(5, nil)

	s.sources.EXPECT().GetByName(s.ctx, "rust").Return(nil, domain.ErrNotFound)
	s.sources.EXPECT().FindByPosition(s.ctx, 1).Return(&domain.Source{ID: 9, Position: 1}, nil)
	s.sources.EXPECT().UpdatePosition(s.ctx, int64(9), 6).Return(nil)
	s.sources.EXPECT().Insert(s.ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, src *domain.Source) (int64, error) {
			s.Equal("rust", src.RedditName)
			s.Equal(1, src.Position)
			s.True(src.Active)
			return 20, nil
		})

	s.sources.EXPECT().GetByName(s.ctx, "zig").Return(nil, domain.ErrNotFound)
	s.sources.EXPECT().FindByPosition(s.ctx, 2).Return(&domain.Source{ID: 10, Position: 2}, nil)
	s.sources.EXPECT().UpdatePosition(s.ctx, int64(10), 7).Return(nil)
	s.sources.EXPECT().Insert(s.ctx, gomock.Any()).Return(int64(21), nil)

	stats, err := s.service.Sync(s.ctx, RunConfig{})

	s.NoError(err)
	s.Equal(2, stats.New)
}

func (s *SourceSyncServiceTestSuite) TestSync_FetchErrorIsFatal() {
	s.source.EXPECT().FetchSourcePage(s.ctx, "").
		Return(nil, fmt.Errorf("%w: no #siteTable", domain.ErrLayoutMismatch))

	stats, err := s.service.Sync(s.ctx, RunConfig{})

	s.ErrorIs(err, domain.ErrLayoutMismatch)
	s.Nil(stats)
}

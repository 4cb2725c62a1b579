package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"citadel/internal/asset/metrics"
	"citadel/internal/asset/models"
	"citadel/internal/asset/store/memory"
	id "citadel/pkg/domain"
	dErrors "citadel/pkg/domain-errors"
	audit "citadel/pkg/platform/audit"
	"citadel/pkg/platform/audit/publisher"
	auditmemory "citadel/pkg/platform/audit/store/memory"
	"citadel/pkg/platform/sentinel"
	"citadel/pkg/requestcontext"
)

// =============================================================================
// Service Test Suite
// =============================================================================
// Runs every operation against the in-memory ledger so transaction scope,
// counters and the transition log are exercised together.

const (
	admin id.Principal = "root"
	alice id.Principal = "alice"
	bob   id.Principal = "bob"
	carol id.Principal = "carol"
)

type ServiceSuite struct {
	suite.Suite
	ledger     *memory.Ledger
	auditStore *auditmemory.InMemoryStore
	service    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ledger = memory.NewLedger()
	s.auditStore = auditmemory.NewInMemoryStore()
	svc, err := New(
		Stores{
			Assets:      s.ledger.Assets,
			Grants:      s.ledger.Grants,
			Transitions: s.ledger.Transitions,
			Counters:    s.ledger.Counters,
			Tx:          s.ledger,
		},
		Config{Administrator: admin},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithAuditPublisher(publisher.NewPublisher(s.auditStore)),
	)
	s.Require().NoError(err)
	s.service = svc
}

func as(p id.Principal, h id.Height) context.Context {
	ctx := requestcontext.WithPrincipal(context.Background(), p)
	return requestcontext.WithHeight(ctx, h)
}

func validRequest(assetID id.AssetID) *models.RegisterRequest {
	return &models.RegisterRequest{
		ID:          assetID,
		Designation: "Harbour survey",
		SizeBytes:   2048,
		Summary:     "Bathymetric survey of the north harbour",
		Tags:        []string{"survey", "harbour"},
		Status:      "active",
	}
}

func (s *ServiceSuite) register(owner id.Principal, assetID id.AssetID, h id.Height) *models.Asset {
	a, err := s.service.Register(as(owner, h), validRequest(assetID))
	s.Require().NoError(err)
	return a
}

func (s *ServiceSuite) counter(category string) uint64 {
	c, err := s.ledger.Counters.Get(context.Background(), category)
	if err != nil {
		return 0
	}
	return c.Value
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), "got %v", err)
}

// =============================================================================
// Constructor
// =============================================================================

func (s *ServiceSuite) TestNew() {
	stores := Stores{
		Assets:      s.ledger.Assets,
		Grants:      s.ledger.Grants,
		Transitions: s.ledger.Transitions,
		Counters:    s.ledger.Counters,
		Tx:          s.ledger,
	}

	s.Run("missing administrator returns error", func() {
		_, err := New(stores, Config{})
		s.Require().Error(err)
		s.Contains(err.Error(), "administrator principal is required")
	})

	s.Run("missing store returns error", func() {
		broken := stores
		broken.Transitions = nil
		_, err := New(broken, Config{Administrator: admin})
		s.Require().Error(err)
		s.Contains(err.Error(), "transition log is required")
	})

	s.Run("zero limits fall back to defaults", func() {
		svc, err := New(stores, Config{Administrator: admin})
		s.Require().NoError(err)
		s.Equal(models.DefaultLimits(), svc.limits)
		s.Equal(admin, svc.Administrator())
	})
}

// =============================================================================
// Registry
// =============================================================================

func (s *ServiceSuite) TestRegister() {
	s.Run("records owner heights and counters", func() {
		a := s.register(alice, 1, 10)
		s.Equal(alice, a.Owner)
		s.Equal(id.Height(10), a.RegisteredAt)
		s.Equal(id.Height(10), a.LastModifiedAt)
		s.Equal(models.StatusActive, a.Status)
		s.False(a.CreatedAt.IsZero())
		s.Equal(uint64(1), s.counter(models.MetricTotalRegisteredAssets))
		s.Equal(uint64(1), s.counter(models.MetricRegistryOperations))
	})

	s.Run("duplicate registration leaves first record unchanged", func() {
		req := validRequest(1)
		req.Designation = "Impostor"
		_, err := s.service.Register(as(bob, 20), req)
		s.requireCode(err, dErrors.CodeDuplicateRegistration)

		a, err := s.service.Get(context.Background(), 1)
		s.Require().NoError(err)
		s.Equal(alice, a.Owner)
		s.Equal("Harbour survey", a.Designation)
		s.Equal(uint64(1), s.counter(models.MetricTotalRegisteredAssets))
	})

	s.Run("zero id allocates the next identifier", func() {
		s.register(alice, 7, 30)
		a := s.register(bob, 0, 31)
		s.Equal(id.AssetID(8), a.ID)
	})

	s.Run("missing principal is unauthorized", func() {
		ctx := requestcontext.WithHeight(context.Background(), 1)
		_, err := s.service.Register(ctx, validRequest(50))
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("emits audit event after commit", func() {
		events, err := s.auditStore.ListByAsset(context.Background(), 1)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventAssetRegistered), events[0].Action)
		s.Equal(alice, events[0].Actor)
	})
}

// TestRegister_ValidationBoundaries checks one unit either side of every bound.
func (s *ServiceSuite) TestRegister_ValidationBoundaries() {
	tags := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("t%d", i)
		}
		return out
	}
	tests := []struct {
		name   string
		mutate func(r *models.RegisterRequest)
		code   dErrors.Code
	}{
		{"title 64 ok", func(r *models.RegisterRequest) { r.Designation = strings.Repeat("a", 64) }, ""},
		{"title 65", func(r *models.RegisterRequest) { r.Designation = strings.Repeat("a", 65) }, dErrors.CodeInvalidTitle},
		{"title empty", func(r *models.RegisterRequest) { r.Designation = "" }, dErrors.CodeInvalidTitle},
		{"abstract 128 ok", func(r *models.RegisterRequest) { r.Summary = strings.Repeat("b", 128) }, ""},
		{"abstract 129", func(r *models.RegisterRequest) { r.Summary = strings.Repeat("b", 129) }, dErrors.CodeInvalidAbstract},
		{"10 tags ok", func(r *models.RegisterRequest) { r.Tags = tags(10) }, ""},
		{"11 tags", func(r *models.RegisterRequest) { r.Tags = tags(11) }, dErrors.CodeInvalidTagSet},
		{"no tags", func(r *models.RegisterRequest) { r.Tags = nil }, dErrors.CodeInvalidTagSet},
		{"empty tag", func(r *models.RegisterRequest) { r.Tags = []string{"ok", ""} }, dErrors.CodeInvalidTagSet},
		{"tag 33", func(r *models.RegisterRequest) { r.Tags = []string{strings.Repeat("c", 33)} }, dErrors.CodeInvalidTagSet},
		{"size 1 ok", func(r *models.RegisterRequest) { r.SizeBytes = 1 }, ""},
		{"size 0", func(r *models.RegisterRequest) { r.SizeBytes = 0 }, dErrors.CodeFileSizeBoundaryViolation},
		{"size max ok", func(r *models.RegisterRequest) { r.SizeBytes = 1_000_000_000 }, ""},
		{"size max+1", func(r *models.RegisterRequest) { r.SizeBytes = 1_000_000_001 }, dErrors.CodeFileSizeBoundaryViolation},
		{"status 17", func(r *models.RegisterRequest) { r.Status = strings.Repeat("s", 17) }, dErrors.CodeValidation},
		{"id max+1", func(r *models.RegisterRequest) { r.ID = id.MaxAssetID + 1 }, dErrors.CodeValidation},
		{"id max uint64", func(r *models.RegisterRequest) { r.ID = ^id.AssetID(0) }, dErrors.CodeValidation},
	}
	for i, tt := range tests {
		s.Run(tt.name, func() {
			req := validRequest(id.AssetID(100 + i))
			tt.mutate(req)
			_, err := s.service.Register(as(alice, 1), req)
			if tt.code == "" {
				s.Require().NoError(err)
				return
			}
			s.requireCode(err, tt.code)
			_, err = s.service.Get(context.Background(), req.ID)
			s.requireCode(err, dErrors.CodeMissingAsset)
		})
	}
}

// TestRegister_IDSpaceExhausted fills the top of the id range and checks that
// allocation fails with a conflict instead of wrapping to zero.
func (s *ServiceSuite) TestRegister_IDSpaceExhausted() {
	top := s.register(alice, id.MaxAssetID, 1)
	s.Equal(id.MaxAssetID, top.ID)

	_, err := s.service.Register(as(alice, 2), validRequest(0))
	s.requireCode(err, dErrors.CodeConflict)
	s.ErrorIs(err, sentinel.ErrExhausted)
	s.Equal(uint64(1), s.counter(models.MetricTotalRegisteredAssets))

	explicit := s.register(bob, 7, 3)
	s.Equal(id.AssetID(7), explicit.ID, "explicit ids below the top still register")
}

// TestRegister_ConcurrentDuplicate races many registrations of one identifier.
func (s *ServiceSuite) TestRegister_ConcurrentDuplicate() {
	const racers = 16
	var succeeded, duplicates atomic.Int32

	var g errgroup.Group
	for i := range racers {
		g.Go(func() error {
			_, err := s.service.Register(as(id.Principal(fmt.Sprintf("racer-%d", i)), 5), validRequest(42))
			switch {
			case err == nil:
				succeeded.Add(1)
			case dErrors.HasCode(err, dErrors.CodeDuplicateRegistration):
				duplicates.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.Equal(int32(1), succeeded.Load())
	s.Equal(int32(racers-1), duplicates.Load())
	s.Equal(uint64(1), s.counter(models.MetricTotalRegisteredAssets))
}

func (s *ServiceSuite) TestGet_Missing() {
	_, err := s.service.Get(context.Background(), 404)
	s.requireCode(err, dErrors.CodeMissingAsset)
}

func (s *ServiceSuite) TestUpdateMetadata() {
	s.register(alice, 1, 10)
	title := "Harbour survey v2"

	s.Run("non-owner is rejected", func() {
		_, err := s.service.UpdateMetadata(as(bob, 11), 1, &models.UpdateMetadataRequest{Designation: &title})
		s.requireCode(err, dErrors.CodeOwnershipVerificationFailed)
	})

	s.Run("administrator is not the owner", func() {
		_, err := s.service.UpdateMetadata(as(admin, 11), 1, &models.UpdateMetadataRequest{Designation: &title})
		s.requireCode(err, dErrors.CodeOwnershipVerificationFailed)
	})

	s.Run("missing asset", func() {
		_, err := s.service.UpdateMetadata(as(alice, 11), 99, &models.UpdateMetadataRequest{Designation: &title})
		s.requireCode(err, dErrors.CodeMissingAsset)
	})

	s.Run("invalid field is rejected without mutation", func() {
		long := strings.Repeat("x", 129)
		_, err := s.service.UpdateMetadata(as(alice, 12), 1, &models.UpdateMetadataRequest{Designation: &title, Summary: &long})
		s.requireCode(err, dErrors.CodeInvalidAbstract)

		a, err := s.service.Get(context.Background(), 1)
		s.Require().NoError(err)
		s.Equal("Harbour survey", a.Designation)
		s.Equal(id.Height(10), a.LastModifiedAt)
	})

	s.Run("empty update is rejected", func() {
		_, err := s.service.UpdateMetadata(as(alice, 12), 1, &models.UpdateMetadataRequest{})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("owner updates and bumps last-modified", func() {
		a, err := s.service.UpdateMetadata(as(alice, 15), 1, &models.UpdateMetadataRequest{Designation: &title})
		s.Require().NoError(err)
		s.Equal(title, a.Designation)
		s.Equal(id.Height(15), a.LastModifiedAt)
		s.Equal(id.Height(10), a.RegisteredAt)
		s.Equal(uint64(1), s.counter(models.MetricMetadataUpdates))
	})
}

func (s *ServiceSuite) TestAddTag() {
	s.register(alice, 1, 10)

	_, err := s.service.AddTag(as(alice, 11), 1, "survey")
	s.requireCode(err, dErrors.CodeMetadataTagValidation)

	_, err = s.service.AddTag(as(alice, 11), 1, "")
	s.requireCode(err, dErrors.CodeMetadataTagValidation)

	_, err = s.service.AddTag(as(bob, 11), 1, "new")
	s.requireCode(err, dErrors.CodeOwnershipVerificationFailed)

	for i := range 8 {
		_, err := s.service.AddTag(as(alice, 12), 1, fmt.Sprintf("extra-%d", i))
		s.Require().NoError(err)
	}
	_, err = s.service.AddTag(as(alice, 13), 1, "one-too-many")
	s.requireCode(err, dErrors.CodeInvalidTagSet)

	a, err := s.service.Get(context.Background(), 1)
	s.Require().NoError(err)
	s.Len(a.Tags, 10)
}

func (s *ServiceSuite) TestArchiveAndSetStatus() {
	s.register(alice, 1, 10)

	_, err := s.service.Archive(as(bob, 11), 1)
	s.requireCode(err, dErrors.CodeOwnershipVerificationFailed)

	a, err := s.service.Archive(as(alice, 12), 1)
	s.Require().NoError(err)
	s.True(a.IsArchived())

	_, err = s.service.TransferOwnership(as(alice, 13), 1, bob, "")
	s.requireCode(err, dErrors.CodeConflict)

	_, err = s.service.SetStatus(as(alice, 14), 1, "active")
	s.requireCode(err, dErrors.CodeAdministrativeAccessRequired)

	a, err = s.service.SetStatus(as(admin, 15), 1, "active")
	s.Require().NoError(err)
	s.Equal(models.StatusActive, a.Status)

	_, err = s.service.SetStatus(as(admin, 15), 404, "active")
	s.requireCode(err, dErrors.CodeMissingAsset)
}

// =============================================================================
// Ownership
// =============================================================================

func (s *ServiceSuite) TestTransferOwnership() {
	s.register(alice, 1, 10)

	s.Run("owner transfers and history records it", func() {
		entry, err := s.service.TransferOwnership(as(alice, 20), 1, bob, "sale")
		s.Require().NoError(err)
		s.Equal(uint64(0), entry.Sequence)

		a, err := s.service.Get(context.Background(), 1)
		s.Require().NoError(err)
		s.Equal(bob, a.Owner)
		s.Equal(id.Height(20), a.LastModifiedAt)
		s.Equal(id.Height(10), a.RegisteredAt)

		history, err := s.service.History(context.Background(), 1)
		s.Require().NoError(err)
		s.Require().Len(history, 1)
		s.Equal(alice, history[0].From)
		s.Equal(bob, history[0].To)
		s.Equal("sale", history[0].Reason)
		s.Equal(uint64(1), s.counter(models.MetricOwnershipTransferCounter))
	})

	s.Run("former owner is rejected", func() {
		_, err := s.service.TransferOwnership(as(alice, 21), 1, carol, "")
		s.requireCode(err, dErrors.CodeOwnershipVerificationFailed)
	})

	s.Run("administrator may transfer", func() {
		entry, err := s.service.TransferOwnership(as(admin, 22), 1, carol, "court order")
		s.Require().NoError(err)
		s.Equal(uint64(1), entry.Sequence, "sequence is previous max plus one")
		s.Equal(bob, entry.From)
		s.Equal(uint64(2), s.counter(models.MetricOwnershipTransferCounter))
	})

	s.Run("reason over limit is rejected", func() {
		_, err := s.service.TransferOwnership(as(carol, 23), 1, bob, strings.Repeat("r", 65))
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("missing asset", func() {
		_, err := s.service.TransferOwnership(as(carol, 23), 99, bob, "")
		s.requireCode(err, dErrors.CodeMissingAsset)
		_, err = s.service.History(context.Background(), 99)
		s.requireCode(err, dErrors.CodeMissingAsset)
	})

	s.Run("history stays ordered", func() {
		history, err := s.service.History(context.Background(), 1)
		s.Require().NoError(err)
		for i, entry := range history {
			s.Equal(uint64(i), entry.Sequence)
		}
	})
}

// =============================================================================
// Access control
// =============================================================================

func (s *ServiceSuite) TestGrantAndRevoke() {
	s.register(alice, 1, 10)

	s.Run("default deny", func() {
		ok, err := s.service.IsAuthorized(context.Background(), 1, bob)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("non-owner may not grant", func() {
		_, err := s.service.Grant(as(bob, 11), 1, bob, "view")
		s.requireCode(err, dErrors.CodeAccessPermissionDenied)
	})

	s.Run("grant on missing asset", func() {
		_, err := s.service.Grant(as(alice, 11), 99, bob, "view")
		s.requireCode(err, dErrors.CodeMissingAsset)
	})

	s.Run("owner grants", func() {
		g, err := s.service.Grant(as(alice, 12), 1, bob, "")
		s.Require().NoError(err)
		s.True(g.Granted)
		s.Equal(models.AccessLevelView, g.Level)
		s.Equal(id.Height(12), g.GrantedAt)

		ok, err := s.service.IsAuthorized(context.Background(), 1, bob)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("administrator grants", func() {
		_, err := s.service.Grant(as(admin, 13), 1, carol, "view")
		s.Require().NoError(err)
	})

	s.Run("revoke flips flag and keeps slot", func() {
		g, err := s.service.Revoke(as(alice, 14), 1, bob)
		s.Require().NoError(err)
		s.False(g.Granted)

		ok, err := s.service.IsAuthorized(context.Background(), 1, bob)
		s.Require().NoError(err)
		s.False(ok)

		grants, err := s.service.ListGrants(as(alice, 15), 1)
		s.Require().NoError(err)
		s.Len(grants, 2)
		s.Equal(uint64(1), s.counter(models.MetricAccessRevocations))
	})

	s.Run("revoking again is a no-op", func() {
		_, err := s.service.Revoke(as(alice, 16), 1, bob)
		s.Require().NoError(err)
		s.Equal(uint64(1), s.counter(models.MetricAccessRevocations))
	})

	s.Run("revoking an absent slot", func() {
		_, err := s.service.Revoke(as(alice, 16), 1, "dave")
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("grantee may not list grants", func() {
		_, err := s.service.ListGrants(as(carol, 17), 1)
		s.requireCode(err, dErrors.CodeViewAuthorizationRejected)
	})

	s.Run("invalid level", func() {
		_, err := s.service.Grant(as(alice, 18), 1, bob, strings.Repeat("l", 17))
		s.requireCode(err, dErrors.CodeValidation)
	})
}

func (s *ServiceSuite) TestRequireView() {
	s.register(alice, 1, 10)
	_, err := s.service.Grant(as(alice, 11), 1, bob, "view")
	s.Require().NoError(err)

	for _, p := range []id.Principal{alice, admin, bob} {
		a, err := s.service.RequireView(as(p, 12), 1)
		s.Require().NoError(err, "principal %s", p)
		s.Equal(id.AssetID(1), a.ID)
	}

	_, err = s.service.RequireView(as(carol, 12), 1)
	s.requireCode(err, dErrors.CodeViewAuthorizationRejected)

	events, err := s.auditStore.ListByAsset(context.Background(), 1)
	s.Require().NoError(err)
	last := events[len(events)-1]
	s.Equal(string(audit.EventAccessDenied), last.Action)
	s.Equal(audit.CategorySecurity, last.Category)
}

// =============================================================================
// Analytics
// =============================================================================

func (s *ServiceSuite) TestAnalyze() {
	s.register(alice, 1, 100)
	_, err := s.service.Grant(as(alice, 150), 1, bob, "view")
	s.Require().NoError(err)
	_, err = s.service.Grant(as(alice, 150), 1, carol, "view")
	s.Require().NoError(err)
	_, err = s.service.Revoke(as(alice, 160), 1, carol)
	s.Require().NoError(err)

	s.Run("owner administrator and grantee succeed", func() {
		for _, p := range []id.Principal{alice, admin, bob} {
			got, err := s.service.Analyze(as(p, 702), 1, p)
			s.Require().NoError(err)
			s.Equal(uint64(602), got.Tenure)
			s.Equal(uint64(2048), got.SizeBytes)
			s.Equal(2, got.TagCount)
			s.Equal(uint64(602), got.ModificationAge)
			s.Equal(uint8(75), got.MaturityScore)
			s.Equal(1, got.AccessComplexity, "only active grants count")
		}
	})

	s.Run("revoked grantee and stranger are denied", func() {
		for _, p := range []id.Principal{carol, "mallory", ""} {
			_, err := s.service.Analyze(as(p, 702), 1, p)
			s.requireCode(err, dErrors.CodeAccessPermissionDenied)
		}
	})

	s.Run("missing asset takes precedence over authorization", func() {
		_, err := s.service.Analyze(as("mallory", 702), 99, "mallory")
		s.requireCode(err, dErrors.CodeMissingAsset)
	})

	s.Run("fresh asset scores 25", func() {
		got, err := s.service.Analyze(as(alice, 100), 1, alice)
		s.Require().NoError(err)
		s.Equal(uint64(0), got.Tenure)
		s.Equal(uint8(25), got.MaturityScore)
	})
}

func (s *ServiceSuite) TestPerformanceScoreAndCounters() {
	score, err := s.service.PerformanceScore(context.Background())
	s.Require().NoError(err)
	s.Equal(uint64(0), score)

	s.register(alice, 1, 1)
	s.register(alice, 2, 1)
	_, err = s.service.TransferOwnership(as(alice, 2), 1, bob, "")
	s.Require().NoError(err)

	score, err = s.service.PerformanceScore(context.Background())
	s.Require().NoError(err)
	s.Equal(uint64(5*2+2*1), score)

	snapshot, err := s.service.Counters(context.Background())
	s.Require().NoError(err)
	s.Equal(score, snapshot.PerformanceScore)
	values := map[string]uint64{}
	for _, c := range snapshot.Counters {
		values[c.Category] = c.Value
	}
	s.Equal(uint64(2), values[models.MetricTotalRegisteredAssets])
	s.Equal(uint64(3), values[models.MetricRegistryOperations])
}

type fixedHeight id.Height

func (h fixedHeight) Current() id.Height { return id.Height(h) }

func (s *ServiceSuite) TestHeightFallback() {
	ctx := requestcontext.WithPrincipal(context.Background(), alice)

	_, err := s.service.Register(ctx, validRequest(1))
	s.requireCode(err, dErrors.CodeInternal)

	WithHeightSource(fixedHeight(77))(s.service)
	a, err := s.service.Register(ctx, validRequest(1))
	s.Require().NoError(err)
	s.Equal(id.Height(77), a.RegisteredAt)
}

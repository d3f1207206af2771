package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timecraft/timebank-backend/internal/changefeed"
	"github.com/timecraft/timebank-backend/internal/models"
	"github.com/timecraft/timebank-backend/internal/pkg/apperror"
	"github.com/timecraft/timebank-backend/internal/repository"
)

const testInitialGrant = 30

// fakeStore - потокобезопасное in-memory хранилище с семантикой репозиториев:
// резервирование кредитов при создании, CAS при получении кредитов.
type fakeStore struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int
	offers   map[uuid.UUID]*models.Offer
	apps     map[uuid.UUID]*models.Application
	trxs     map[uuid.UUID]*models.Transaction // ключ - offerID
	profiles map[uuid.UUID]*models.Profile
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances: make(map[uuid.UUID]int),
		offers:   make(map[uuid.UUID]*models.Offer),
		apps:     make(map[uuid.UUID]*models.Application),
		trxs:     make(map[uuid.UUID]*models.Transaction),
		profiles: make(map[uuid.UUID]*models.Profile),
	}
}

func (f *fakeStore) ensureBalance(userID uuid.UUID, grant int) {
	if _, ok := f.balances[userID]; !ok {
		f.balances[userID] = grant
	}
}

func (f *fakeStore) reserved(ownerID uuid.UUID) int {
	total := 0
	for _, o := range f.offers {
		if o.OwnerID == ownerID && o.Status != models.OfferStatusCompleted {
			total += o.TimeCredits
		}
	}
	return total
}

// available возвращает доступный баланс: хранимый минус резерв открытых запросов.
func (f *fakeStore) available(userID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureBalance(userID, testInitialGrant)
	return f.balances[userID] - f.reserved(userID)
}

func (f *fakeStore) stored(userID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureBalance(userID, testInitialGrant)
	return f.balances[userID]
}

// --- OfferStore ---

func (f *fakeStore) Create(_ context.Context, offer *models.Offer, initialGrant int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ensureBalance(offer.OwnerID, initialGrant)
	if f.balances[offer.OwnerID]-f.reserved(offer.OwnerID) < offer.TimeCredits {
		return repository.ErrInsufficientCredits
	}

	offer.ID = uuid.New()
	offer.Status = models.OfferStatusAvailable
	stored := *offer
	f.offers[offer.ID] = &stored
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	offer, ok := f.offers[id]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	copied := *offer
	return &copied, nil
}

func (f *fakeStore) List(_ context.Context, status string, _, _ int) ([]models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Offer
	for _, o := range f.offers {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Offer
	for _, o := range f.offers {
		if o.OwnerID == ownerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) AcceptedServiceTypes(_ context.Context, userID uuid.UUID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, a := range f.apps {
		if a.ApplicantID == userID && a.Status == models.ApplicationStatusAccepted {
			if o, ok := f.offers[a.OfferID]; ok && !seen[o.ServiceType] {
				seen[o.ServiceType] = true
				out = append(out, o.ServiceType)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) AcceptedCounts(_ context.Context, offerIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[uuid.UUID]int)
	for _, a := range f.apps {
		if a.Status == models.ApplicationStatusAccepted {
			counts[a.OfferID]++
		}
	}
	return counts, nil
}

func (f *fakeStore) Update(_ context.Context, offer *models.Offer, initialGrant int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.offers[offer.ID]
	if !ok {
		return repository.ErrOfferNotFound
	}
	if current.OwnerID != offer.OwnerID {
		return repository.ErrNotOfferOwner
	}
	if current.Status == models.OfferStatusCompleted {
		return repository.ErrOfferCompleted
	}

	if offer.TimeCredits > current.TimeCredits {
		f.ensureBalance(offer.OwnerID, initialGrant)
		reservedOther := f.reserved(offer.OwnerID) - current.TimeCredits
		if f.balances[offer.OwnerID]-reservedOther < offer.TimeCredits {
			return repository.ErrInsufficientCredits
		}
	}

	current.Title = offer.Title
	current.Description = offer.Description
	current.ServiceType = offer.ServiceType
	current.Hours = offer.Hours
	current.TimeCredits = offer.TimeCredits
	*offer = *current
	return nil
}

func (f *fakeStore) Delete(_ context.Context, offerID, ownerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	offer, ok := f.offers[offerID]
	if !ok {
		return repository.ErrOfferNotFound
	}
	if offer.OwnerID != ownerID {
		return repository.ErrNotOfferOwner
	}
	if offer.Status == models.OfferStatusCompleted {
		return repository.ErrOfferCompleted
	}

	delete(f.offers, offerID)
	for id, a := range f.apps {
		if a.OfferID == offerID {
			delete(f.apps, id)
		}
	}
	return nil
}

// --- ApplicationStore ---

func (f *fakeStore) CreateApplication(_ context.Context, offerID, applicantID uuid.UUID) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	offer, ok := f.offers[offerID]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	if offer.OwnerID == applicantID {
		return nil, repository.ErrOwnOffer
	}
	if offer.Status != models.OfferStatusAvailable {
		return nil, repository.ErrOfferNotAvailable
	}
	for _, a := range f.apps {
		if a.OfferID == offerID && a.ApplicantID == applicantID {
			return nil, repository.ErrAlreadyApplied
		}
	}

	app := &models.Application{
		ID:          uuid.New(),
		OfferID:     offerID,
		ApplicantID: applicantID,
		Status:      models.ApplicationStatusPending,
	}
	f.apps[app.ID] = app
	copied := *app
	return &copied, nil
}

func (f *fakeStore) GetApplicationByID(_ context.Context, id uuid.UUID) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	app, ok := f.apps[id]
	if !ok {
		return nil, repository.ErrApplicationNotFound
	}
	copied := *app
	return &copied, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, applicationID, callerID uuid.UUID, status string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	app, ok := f.apps[applicationID]
	if !ok {
		return nil, repository.ErrApplicationNotFound
	}
	offer, ok := f.offers[app.OfferID]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	if offer.OwnerID != callerID {
		return nil, repository.ErrNotOfferOwner
	}
	if app.Status != models.ApplicationStatusPending {
		return nil, repository.ErrApplicationNotPending
	}
	if status == models.ApplicationStatusAccepted {
		if offer.Status != models.OfferStatusAvailable {
			return nil, repository.ErrOfferNotAvailable
		}
		offer.Status = models.OfferStatusBooked
	}

	app.Status = status
	copied := *app
	return &copied, nil
}

func (f *fakeStore) GetAcceptedByOffer(_ context.Context, offerID uuid.UUID) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.apps {
		if a.OfferID == offerID && a.Status == models.ApplicationStatusAccepted {
			copied := *a
			return &copied, nil
		}
	}
	return nil, repository.ErrApplicationNotFound
}

func (f *fakeStore) CountsByOffer(_ context.Context, offerIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[uuid.UUID]int)
	for _, a := range f.apps {
		counts[a.OfferID]++
	}
	return counts, nil
}

func (f *fakeStore) ListByOffer(_ context.Context, offerID uuid.UUID) ([]models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Application
	for _, a := range f.apps {
		if a.OfferID == offerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByApplicant(_ context.Context, applicantID uuid.UUID) ([]models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Application
	for _, a := range f.apps {
		if a.ApplicantID == applicantID {
			out = append(out, *a)
		}
	}
	return out, nil
}

// --- TransactionStore ---

func (f *fakeStore) CreateForCompletedOffer(_ context.Context, offerID, ownerID uuid.UUID) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	offer, ok := f.offers[offerID]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	if offer.OwnerID != ownerID {
		return nil, repository.ErrNotOfferOwner
	}
	if offer.Status == models.OfferStatusCompleted {
		return nil, repository.ErrOfferCompleted
	}

	var accepted *models.Application
	for _, a := range f.apps {
		if a.OfferID == offerID && a.Status == models.ApplicationStatusAccepted {
			accepted = a
			break
		}
	}
	if accepted == nil {
		return nil, repository.ErrNoAcceptedApplication
	}

	offer.Status = models.OfferStatusCompleted
	trx := &models.Transaction{
		ID:          uuid.New(),
		OfferID:     offerID,
		RequesterID: ownerID,
		ProviderID:  accepted.ApplicantID,
		ServiceType: offer.ServiceType,
		Hours:       offer.TimeCredits,
		Claimed:     false,
	}
	f.trxs[offerID] = trx
	copied := *trx
	return &copied, nil
}

func (f *fakeStore) Claim(_ context.Context, offerID, providerID uuid.UUID) (*models.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	trx, ok := f.trxs[offerID]
	if !ok {
		return nil, false, repository.ErrTransactionNotFound
	}
	if trx.ProviderID != providerID {
		return nil, false, repository.ErrNotProvider
	}
	if trx.Claimed {
		copied := *trx
		return &copied, true, nil
	}

	trx.Claimed = true
	f.ensureBalance(providerID, testInitialGrant)
	f.balances[providerID] += trx.Hours
	copied := *trx
	return &copied, false, nil
}

func (f *fakeStore) GetByOfferID(_ context.Context, offerID uuid.UUID) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	trx, ok := f.trxs[offerID]
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}
	copied := *trx
	return &copied, nil
}

// --- ProfileStore ---

func (f *fakeStore) GetProfile(_ context.Context, userID uuid.UUID) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	profile, ok := f.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	copied := *profile
	return &copied, nil
}

// applicationStoreAdapter сводит имена методов fakeStore к ApplicationStore.
type applicationStoreAdapter struct {
	*fakeStore
}

func (a applicationStoreAdapter) Create(ctx context.Context, offerID, applicantID uuid.UUID) (*models.Application, error) {
	return a.CreateApplication(ctx, offerID, applicantID)
}

func (a applicationStoreAdapter) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return a.GetApplicationByID(ctx, id)
}

// feedRecorder накапливает опубликованные изменения.
type feedRecorder struct {
	mu      sync.Mutex
	changes []changefeed.Change
}

func (r *feedRecorder) Publish(change changefeed.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

func (r *feedRecorder) byTable(table string) []changefeed.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []changefeed.Change
	for _, c := range r.changes {
		if c.Table == table {
			out = append(out, c)
		}
	}
	return out
}

func newTestService() (*LifecycleService, *fakeStore, *feedRecorder) {
	store := newFakeStore()
	feed := &feedRecorder{}
	svc := NewLifecycleService(store, applicationStoreAdapter{store}, store, store, feed, testInitialGrant)
	return svc, store, feed
}

func validOfferInput(credits int) CreateOfferInput {
	return CreateOfferInput{
		Title:       "Помощь с переездом",
		Description: "Нужно перевезти вещи на новую квартиру",
		ServiceType: "переезд",
		Hours:       credits,
		TimeCredits: credits,
	}
}

func TestCreateOffer_ReservesAvailableBalance(t *testing.T) {
	svc, store, feed := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	offer, err := svc.CreateOffer(ctx, owner, validOfferInput(5))
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusAvailable, offer.Status)

	// Хранимый баланс не тронут, доступный уменьшился на стоимость запроса.
	assert.Equal(t, testInitialGrant, store.stored(owner))
	assert.Equal(t, testInitialGrant-5, store.available(owner))

	assert.Len(t, feed.byTable(changefeed.TableOffers), 1)
	assert.Len(t, feed.byTable(changefeed.TableBalances), 1)
}

func TestCreateOffer_InsufficientCredits(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.CreateOffer(ctx, owner, validOfferInput(testInitialGrant+1))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrCodeInsufficientCredits))

	// Неудачное создание ничего не записывает.
	offers, _ := store.ListByOwner(ctx, owner)
	assert.Empty(t, offers)
	assert.Equal(t, testInitialGrant, store.available(owner))
}

func TestCreateOffer_ReservationAccumulates(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.CreateOffer(ctx, owner, validOfferInput(20))
	require.NoError(t, err)

	// 20 уже зарезервировано, на второй запрос в 20 кредитов не хватает.
	_, err = svc.CreateOffer(ctx, owner, validOfferInput(20))
	assert.True(t, apperror.Is(err, apperror.ErrCodeInsufficientCredits))

	_, err = svc.CreateOffer(ctx, owner, validOfferInput(10))
	assert.NoError(t, err)
}

func TestCreateOffer_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	in := validOfferInput(5)
	in.Title = "ab"
	_, err := svc.CreateOffer(ctx, uuid.New(), in)
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))

	in = validOfferInput(5)
	in.TimeCredits = 0
	_, err = svc.CreateOffer(ctx, uuid.New(), in)
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))
}

func TestUpdateOffer_GrowthRechecksBalance(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	offer, err := svc.CreateOffer(ctx, owner, validOfferInput(20))
	require.NoError(t, err)
	_, err = svc.CreateOffer(ctx, owner, validOfferInput(5))
	require.NoError(t, err)

	// Рост до 25 помещается: резерв других запросов 5, хранимый баланс 30.
	updated, err := svc.UpdateOffer(ctx, offer.ID, owner, validOfferInput(25))
	require.NoError(t, err)
	assert.Equal(t, 25, updated.TimeCredits)
	assert.Equal(t, 0, store.available(owner))

	// Ещё на кредит больше — уже нет.
	_, err = svc.UpdateOffer(ctx, offer.ID, owner, validOfferInput(26))
	assert.True(t, apperror.Is(err, apperror.ErrCodeInsufficientCredits))

	// Уменьшение проходит всегда и освобождает резерв.
	_, err = svc.UpdateOffer(ctx, offer.ID, owner, validOfferInput(10))
	require.NoError(t, err)
	assert.Equal(t, 15, store.available(owner))
}

func TestUpdateOffer_OnlyOwner(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	offer, err := svc.CreateOffer(ctx, owner, validOfferInput(5))
	require.NoError(t, err)

	_, err = svc.UpdateOffer(ctx, offer.ID, uuid.New(), validOfferInput(5))
	assert.True(t, apperror.Is(err, apperror.ErrCodeForbidden))

	_, err = svc.UpdateOffer(ctx, uuid.New(), owner, validOfferInput(5))
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdateOffer_CompletedIsImmutable(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner, provider := uuid.New(), uuid.New()

	offer := mustBookOffer(t, svc, owner, provider, 5)
	_, err := svc.CompleteOffer(ctx, offer.ID, owner)
	require.NoError(t, err)

	_, err = svc.UpdateOffer(ctx, offer.ID, owner, validOfferInput(5))
	assert.True(t, apperror.Is(err, apperror.ErrCodeAlreadyCompleted))
}

func TestListOffersByOwner_IncludesApplicationCounts(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	offer, err := svc.CreateOffer(ctx, owner, validOfferInput(5))
	require.NoError(t, err)
	_, err = svc.ApplyToOffer(ctx, offer.ID, uuid.New())
	require.NoError(t, err)
	_, err = svc.ApplyToOffer(ctx, offer.ID, uuid.New())
	require.NoError(t, err)

	offers, counts, err := svc.ListOffersByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, 2, counts[offer.ID])
}

func TestApplyToOffer_OwnOffer(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	offer, err := svc.CreateOffer(ctx, owner, validOfferInput(5))
	require.NoError(t, err)

	_, err = svc.ApplyToOffer(ctx, offer.ID, owner)
	assert.True(t, apperror.Is(err, apperror.ErrCodeForbidden))
}

func TestApplyToOffer_Duplicate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner, applicant := uuid.New(), uuid.New()

	offer, err := svc.CreateOffer(ctx, owner, validOfferInput(5))
	require.NoError(t, err)

	_, err = svc.ApplyToOffer(ctx, offer.ID, applicant)
	require.NoError(t, err)

	_, err = svc.ApplyToOffer(ctx, offer.ID, applicant)
	assert.True(t, apperror.Is(err, apperror.ErrCodeAlreadyApplied))
}

func TestApplyToOffer_BookedOffer(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner, first, second := uuid.New(), uuid.New(), uuid.New()

	offer, err := svc.CreateOffer(ctx, owner, validOfferInput(5))
	require.NoError(t, err)

	app, err := svc.ApplyToOffer(ctx, offer.ID, first)
	require.NoError(t, err)
	_, err = svc.UpdateApplicationStatus(ctx, app.ID, owner, models.ApplicationStatusAccepted)
	require.NoError(t, err)

	_, err = svc.ApplyToOffer(ctx, offer.ID, second)
	assert.True(t, apperror.Is(err, apperror.ErrCodeOfferUnavailable))
}

func TestUpdateApplicationStatus_OnlyOwner(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner, applicant, stranger := uuid.New(), uuid.New(), uuid.New()

	offer, err := svc.CreateOffer(ctx, owner, validOfferInput(5))
	require.NoError(t, err)
	app, err := svc.ApplyToOffer(ctx, offer.ID, applicant)
	require.NoError(t, err)

	_, err = svc.UpdateApplicationStatus(ctx, app.ID, stranger, models.ApplicationStatusAccepted)
	assert.True(t, apperror.Is(err, apperror.ErrCodeForbidden))

	_, err = svc.UpdateApplicationStatus(ctx, app.ID, owner, "забронирована")
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))
}

func TestUpdateApplicationStatus_SiblingsStayPending(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner, first, second := uuid.New(), uuid.New(), uuid.New()

	offer, err := svc.CreateOffer(ctx, owner, validOfferInput(5))
	require.NoError(t, err)

	appFirst, err := svc.ApplyToOffer(ctx, offer.ID, first)
	require.NoError(t, err)
	appSecond, err := svc.ApplyToOffer(ctx, offer.ID, second)
	require.NoError(t, err)

	_, err = svc.UpdateApplicationStatus(ctx, appFirst.ID, owner, models.ApplicationStatusAccepted)
	require.NoError(t, err)

	// Принятие одной заявки не отклоняет остальные автоматически.
	sibling, err := svc.GetApplication(ctx, appSecond.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, sibling.Status)

	// Но принять вторую уже нельзя: запрос забронирован.
	_, err = svc.UpdateApplicationStatus(ctx, appSecond.ID, owner, models.ApplicationStatusAccepted)
	assert.True(t, apperror.Is(err, apperror.ErrCodeOfferUnavailable))
}

func TestCompleteOffer_RequiresAcceptedApplication(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	offer, err := svc.CreateOffer(ctx, owner, validOfferInput(5))
	require.NoError(t, err)

	_, err = svc.CompleteOffer(ctx, offer.ID, owner)
	assert.True(t, apperror.Is(err, apperror.ErrCodeNoAcceptedApplication))
}

func TestCompleteOffer_Twice(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner, applicant := uuid.New(), uuid.New()

	offer := mustBookOffer(t, svc, owner, applicant, 5)

	_, err := svc.CompleteOffer(ctx, offer.ID, owner)
	require.NoError(t, err)

	_, err = svc.CompleteOffer(ctx, offer.ID, owner)
	assert.True(t, apperror.Is(err, apperror.ErrCodeAlreadyCompleted))
}

func TestFullRoundTrip(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	requester, provider := uuid.New(), uuid.New()

	// A: баланс 30, создаёт запрос на 5 → доступно 25, хранимый не тронут.
	offer, err := svc.CreateOffer(ctx, requester, validOfferInput(5))
	require.NoError(t, err)
	assert.Equal(t, 25, store.available(requester))
	assert.Equal(t, 30, store.stored(requester))

	app, err := svc.ApplyToOffer(ctx, offer.ID, provider)
	require.NoError(t, err)
	_, err = svc.UpdateApplicationStatus(ctx, app.ID, requester, models.ApplicationStatusAccepted)
	require.NoError(t, err)

	trx, err := svc.CompleteOffer(ctx, offer.ID, requester)
	require.NoError(t, err)
	assert.False(t, trx.Claimed)
	assert.Equal(t, 5, trx.Hours)

	// Завершение не двигает балансы, но снимает резерв с владельца.
	assert.Equal(t, 30, store.stored(provider))
	assert.Equal(t, 30, store.available(requester))

	result, err := svc.ClaimCredits(ctx, offer.ID, provider)
	require.NoError(t, err)
	assert.False(t, result.AlreadyClaimed)
	assert.True(t, result.Transaction.Claimed)

	// Исполнитель получил ровно 5; хранимый баланс заказчика не изменился.
	assert.Equal(t, 35, store.stored(provider))
	assert.Equal(t, 30, store.stored(requester))

	completed, err := svc.GetOffer(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusCompleted, completed.Status)
}

func TestClaimCredits_SecondCallIsNoop(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	owner, provider := uuid.New(), uuid.New()

	offer := mustBookOffer(t, svc, owner, provider, 5)
	_, err := svc.CompleteOffer(ctx, offer.ID, owner)
	require.NoError(t, err)

	first, err := svc.ClaimCredits(ctx, offer.ID, provider)
	require.NoError(t, err)
	assert.False(t, first.AlreadyClaimed)

	second, err := svc.ClaimCredits(ctx, offer.ID, provider)
	require.NoError(t, err)
	assert.True(t, second.AlreadyClaimed)

	assert.Equal(t, testInitialGrant+5, store.stored(provider))
}

func TestClaimCredits_ConcurrentExactlyOnce(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	owner, provider := uuid.New(), uuid.New()

	offer := mustBookOffer(t, svc, owner, provider, 5)
	_, err := svc.CompleteOffer(ctx, offer.ID, owner)
	require.NoError(t, err)

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	credited := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.ClaimCredits(ctx, offer.ID, provider)
			if err != nil {
				return
			}
			if !result.AlreadyClaimed {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Сколько бы ни было конкурентных попыток, зачисление одно.
	assert.Equal(t, 1, credited)
	assert.Equal(t, testInitialGrant+5, store.stored(provider))
}

func TestClaimCredits_OnlyProvider(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner, provider := uuid.New(), uuid.New()

	offer := mustBookOffer(t, svc, owner, provider, 5)
	_, err := svc.CompleteOffer(ctx, offer.ID, owner)
	require.NoError(t, err)

	_, err = svc.ClaimCredits(ctx, offer.ID, owner)
	assert.True(t, apperror.Is(err, apperror.ErrCodeForbidden))

	_, err = svc.ClaimCredits(ctx, uuid.New(), provider)
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeleteOffer_FreesReservation(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	offer, err := svc.CreateOffer(ctx, owner, validOfferInput(20))
	require.NoError(t, err)
	assert.Equal(t, 10, store.available(owner))

	require.NoError(t, svc.DeleteOffer(ctx, offer.ID, owner))
	assert.Equal(t, 30, store.available(owner))

	// Заявки удаляются вместе с запросом.
	apps, _ := store.ListByOffer(ctx, offer.ID)
	assert.Empty(t, apps)
}

func TestDeleteOffer_CompletedIsImmutable(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner, provider := uuid.New(), uuid.New()

	offer := mustBookOffer(t, svc, owner, provider, 5)
	_, err := svc.CompleteOffer(ctx, offer.ID, owner)
	require.NoError(t, err)

	err = svc.DeleteOffer(ctx, offer.ID, owner)
	assert.True(t, apperror.Is(err, apperror.ErrCodeAlreadyCompleted))
}

func TestDeleteOffer_OnlyOwner(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	offer, err := svc.CreateOffer(ctx, owner, validOfferInput(5))
	require.NoError(t, err)

	err = svc.DeleteOffer(ctx, offer.ID, uuid.New())
	assert.True(t, apperror.Is(err, apperror.ErrCodeForbidden))
}

func TestCompleteOffer_PublishesChanges(t *testing.T) {
	svc, _, feed := newTestService()
	ctx := context.Background()
	owner, provider := uuid.New(), uuid.New()

	offer := mustBookOffer(t, svc, owner, provider, 5)

	trx, err := svc.CompleteOffer(ctx, offer.ID, owner)
	require.NoError(t, err)

	trxChanges := feed.byTable(changefeed.TableTransactions)
	require.Len(t, trxChanges, 1)
	assert.Equal(t, changefeed.OpInsert, trxChanges[0].Op)
	assert.True(t, trxChanges[0].Touches(provider))
	assert.True(t, trxChanges[0].Touches(owner))
	assert.Equal(t, trx.ID, trxChanges[0].RowID)
}

// mustBookOffer прогоняет запрос до статуса booked.
func mustBookOffer(t *testing.T, svc *LifecycleService, owner, applicant uuid.UUID, credits int) *models.Offer {
	t.Helper()
	ctx := context.Background()

	offer, err := svc.CreateOffer(ctx, owner, validOfferInput(credits))
	require.NoError(t, err)

	app, err := svc.ApplyToOffer(ctx, offer.ID, applicant)
	require.NoError(t, err)

	_, err = svc.UpdateApplicationStatus(ctx, app.ID, owner, models.ApplicationStatusAccepted)
	require.NoError(t, err)

	return offer
}

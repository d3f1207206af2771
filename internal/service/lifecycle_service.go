package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/timecraft/timebank-backend/internal/changefeed"
	"github.com/timecraft/timebank-backend/internal/logger"
	"github.com/timecraft/timebank-backend/internal/models"
	"github.com/timecraft/timebank-backend/internal/pkg/apperror"
	"github.com/timecraft/timebank-backend/internal/ranking"
	"github.com/timecraft/timebank-backend/internal/repository"
	"github.com/timecraft/timebank-backend/internal/validation"
)

// OfferStore описывает зависимости жизненного цикла от хранилища запросов.
type OfferStore interface {
	Create(ctx context.Context, offer *models.Offer, initialGrant int) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.Offer, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Offer, error)
	AcceptedServiceTypes(ctx context.Context, userID uuid.UUID) ([]string, error)
	AcceptedCounts(ctx context.Context, offerIDs []uuid.UUID) (map[uuid.UUID]int, error)
	Update(ctx context.Context, offer *models.Offer, initialGrant int) error
	Delete(ctx context.Context, offerID, ownerID uuid.UUID) error
}

// ApplicationStore описывает зависимости от хранилища заявок.
type ApplicationStore interface {
	Create(ctx context.Context, offerID, applicantID uuid.UUID) (*models.Application, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	UpdateStatus(ctx context.Context, applicationID, callerID uuid.UUID, status string) (*models.Application, error)
	GetAcceptedByOffer(ctx context.Context, offerID uuid.UUID) (*models.Application, error)
	CountsByOffer(ctx context.Context, offerIDs []uuid.UUID) (map[uuid.UUID]int, error)
	ListByOffer(ctx context.Context, offerID uuid.UUID) ([]models.Application, error)
	ListByApplicant(ctx context.Context, applicantID uuid.UUID) ([]models.Application, error)
}

// TransactionStore описывает зависимости от журнала обменов.
type TransactionStore interface {
	CreateForCompletedOffer(ctx context.Context, offerID, ownerID uuid.UUID) (*models.Transaction, error)
	Claim(ctx context.Context, offerID, providerID uuid.UUID) (*models.Transaction, bool, error)
	GetByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Transaction, error)
}

// ProfileStore нужен сортировке по релевантности.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

// CreateOfferInput содержит поля нового запроса услуги.
type CreateOfferInput struct {
	Title       string
	Description string
	ServiceType string
	Hours       int
	TimeCredits int
}

// ListOffersInput описывает параметры выборки запросов.
type ListOffersInput struct {
	Status      string
	Limit       int
	Offset      int
	SortByScore bool
	// ViewerID нужен только при SortByScore: релевантность считается
	// относительно услуг профиля зрителя.
	ViewerID uuid.UUID
}

// ClaimResult — итог попытки получить кредиты за завершённый обмен.
type ClaimResult struct {
	Transaction    *models.Transaction
	AlreadyClaimed bool
}

// LifecycleService реализует жизненный цикл запроса услуги: создание с
// резервированием кредитов, заявки, завершение и отложенное получение
// кредитов. Все денежные инварианты обеспечиваются транзакциями хранилища;
// сервис отвечает за валидацию, трансляцию ошибок и публикацию изменений.
type LifecycleService struct {
	offers       OfferStore
	applications ApplicationStore
	transactions TransactionStore
	profiles     ProfileStore
	feed         changefeed.Publisher
	initialGrant int
}

// NewLifecycleService создаёт сервис жизненного цикла.
func NewLifecycleService(
	offers OfferStore,
	applications ApplicationStore,
	transactions TransactionStore,
	profiles ProfileStore,
	feed changefeed.Publisher,
	initialGrant int,
) *LifecycleService {
	if feed == nil {
		feed = changefeed.Func(func(changefeed.Change) {})
	}
	return &LifecycleService{
		offers:       offers,
		applications: applications,
		transactions: transactions,
		profiles:     profiles,
		feed:         feed,
		initialGrant: initialGrant,
	}
}

// CreateOffer создаёт запрос услуги, атомарно резервируя time_credits из
// доступного баланса владельца. При нехватке кредитов запрос не создаётся.
func (s *LifecycleService) CreateOffer(ctx context.Context, ownerID uuid.UUID, in CreateOfferInput) (*models.Offer, error) {
	if err := validation.ValidateOfferTitle(in.Title); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateOfferDescription(in.Description); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateServiceType(in.ServiceType); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateHours(in.Hours); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateTimeCredits(in.TimeCredits); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	offer := &models.Offer{
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		ServiceType: in.ServiceType,
		Hours:       in.Hours,
		TimeCredits: in.TimeCredits,
	}

	if err := s.offers.Create(ctx, offer, s.initialGrant); err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientCredits):
			return nil, apperror.ErrInsufficientCredits
		default:
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось создать запрос")
		}
	}

	logger.Log.WithField("offer_id", offer.ID).WithField("owner_id", ownerID).Info("запрос услуги создан")

	s.feed.Publish(changefeed.Change{Table: changefeed.TableOffers, Op: changefeed.OpInsert, RowID: offer.ID})
	s.feed.Publish(changefeed.Change{Table: changefeed.TableBalances, Op: changefeed.OpUpdate, RowID: ownerID, UserIDs: []uuid.UUID{ownerID}})

	return offer, nil
}

// UpdateOffer редактирует поля незавершённого запроса владельца. Рост
// time_credits повторно проверяется по доступному балансу атомарно с
// обновлением, как при создании.
func (s *LifecycleService) UpdateOffer(ctx context.Context, offerID, ownerID uuid.UUID, in CreateOfferInput) (*models.Offer, error) {
	if err := validation.ValidateOfferTitle(in.Title); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateOfferDescription(in.Description); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateServiceType(in.ServiceType); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateHours(in.Hours); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateTimeCredits(in.TimeCredits); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	offer := &models.Offer{
		ID:          offerID,
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		ServiceType: in.ServiceType,
		Hours:       in.Hours,
		TimeCredits: in.TimeCredits,
	}

	if err := s.offers.Update(ctx, offer, s.initialGrant); err != nil {
		switch {
		case errors.Is(err, repository.ErrOfferNotFound):
			return nil, apperror.ErrOfferNotFound
		case errors.Is(err, repository.ErrNotOfferOwner):
			return nil, apperror.New(apperror.ErrCodeForbidden, "изменить запрос может только его владелец")
		case errors.Is(err, repository.ErrOfferCompleted):
			return nil, apperror.New(apperror.ErrCodeAlreadyCompleted, "завершённый запрос изменить нельзя")
		case errors.Is(err, repository.ErrInsufficientCredits):
			return nil, apperror.ErrInsufficientCredits
		default:
			return nil, s.translate(err, "не удалось изменить запрос")
		}
	}

	s.feed.Publish(changefeed.Change{Table: changefeed.TableOffers, Op: changefeed.OpUpdate, RowID: offer.ID})
	// Изменение стоимости двигает резерв и, значит, доступный баланс владельца.
	s.feed.Publish(changefeed.Change{Table: changefeed.TableBalances, Op: changefeed.OpUpdate, RowID: ownerID, UserIDs: []uuid.UUID{ownerID}})

	return offer, nil
}

// GetOffer возвращает запрос по идентификатору.
func (s *LifecycleService) GetOffer(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, s.translate(err, "не удалось получить запрос")
	}
	return offer, nil
}

// ListOffers возвращает запросы; при SortByScore — отсортированные по
// релевантности для зрителя (его услуги профиля плюс принятые им услуги).
func (s *LifecycleService) ListOffers(ctx context.Context, in ListOffersInput) ([]models.Offer, error) {
	offers, err := s.offers.List(ctx, in.Status, in.Limit, in.Offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить список запросов")
	}

	if !in.SortByScore || in.ViewerID == uuid.Nil {
		return offers, nil
	}

	services := s.viewerServices(ctx, in.ViewerID)
	if len(services) == 0 {
		return offers, nil
	}

	ids := make([]uuid.UUID, len(offers))
	for i, o := range offers {
		ids[i] = o.ID
	}
	counts, err := s.offers.AcceptedCounts(ctx, ids)
	if err != nil {
		// Сортировка — удобство выдачи, не повод ронять запрос.
		logger.Log.WithError(err).Warn("lifecycle: не удалось получить счётчики принятых заявок")
		counts = nil
	}

	return ranking.SortByRelevance(offers, services, counts), nil
}

// ListOffersByOwner возвращает запросы пользователя вместе с числом заявок
// на каждый из них.
func (s *LifecycleService) ListOffersByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Offer, map[uuid.UUID]int, error) {
	offers, err := s.offers.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить список запросов")
	}

	ids := make([]uuid.UUID, len(offers))
	for i, o := range offers {
		ids[i] = o.ID
	}
	counts, err := s.applications.CountsByOffer(ctx, ids)
	if err != nil {
		// Счётчики — украшение выдачи, не повод ронять запрос.
		logger.Log.WithError(err).Warn("lifecycle: не удалось получить счётчики заявок")
		counts = nil
	}

	return offers, counts, nil
}

// ApplyToOffer создаёт заявку исполнителя на доступный чужой запрос.
func (s *LifecycleService) ApplyToOffer(ctx context.Context, offerID, applicantID uuid.UUID) (*models.Application, error) {
	app, err := s.applications.Create(ctx, offerID, applicantID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOfferNotFound):
			return nil, apperror.ErrOfferNotFound
		case errors.Is(err, repository.ErrOwnOffer):
			return nil, apperror.New(apperror.ErrCodeForbidden, "нельзя подать заявку на собственный запрос")
		case errors.Is(err, repository.ErrOfferNotAvailable):
			return nil, apperror.ErrOfferUnavailable
		case errors.Is(err, repository.ErrAlreadyApplied):
			return nil, apperror.ErrAlreadyApplied
		default:
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось подать заявку")
		}
	}

	userIDs := []uuid.UUID{applicantID}
	if offer, err := s.offers.GetByID(ctx, offerID); err == nil {
		userIDs = append(userIDs, offer.OwnerID)
	}
	s.feed.Publish(changefeed.Change{Table: changefeed.TableApplications, Op: changefeed.OpInsert, RowID: app.ID, UserIDs: userIDs})

	return app, nil
}

// UpdateApplicationStatus принимает или отклоняет pending-заявку. Принятие
// переводит запрос в booked; остальные заявки остаются pending и могут быть
// отклонены владельцем отдельно.
func (s *LifecycleService) UpdateApplicationStatus(ctx context.Context, applicationID, callerID uuid.UUID, status string) (*models.Application, error) {
	if status != models.ApplicationStatusAccepted && status != models.ApplicationStatusRejected {
		return nil, apperror.New(apperror.ErrCodeValidation, "статус заявки должен быть accepted или rejected")
	}

	app, err := s.applications.UpdateStatus(ctx, applicationID, callerID, status)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrApplicationNotFound):
			return nil, apperror.ErrApplicationNotFound
		case errors.Is(err, repository.ErrOfferNotFound):
			return nil, apperror.ErrOfferNotFound
		case errors.Is(err, repository.ErrNotOfferOwner):
			return nil, apperror.New(apperror.ErrCodeForbidden, "заявки обрабатывает только владелец запроса")
		case errors.Is(err, repository.ErrApplicationNotPending):
			return nil, apperror.New(apperror.ErrCodeBadRequest, "заявка уже обработана")
		case errors.Is(err, repository.ErrOfferNotAvailable):
			return nil, apperror.ErrOfferUnavailable
		default:
			return nil, s.translate(err, "не удалось обновить заявку")
		}
	}

	userIDs := []uuid.UUID{callerID, app.ApplicantID}
	s.feed.Publish(changefeed.Change{Table: changefeed.TableApplications, Op: changefeed.OpUpdate, RowID: app.ID, UserIDs: userIDs})
	if status == models.ApplicationStatusAccepted {
		s.feed.Publish(changefeed.Change{Table: changefeed.TableOffers, Op: changefeed.OpUpdate, RowID: app.OfferID})
	}

	return app, nil
}

// CompleteOffer отмечает забронированный запрос завершённым и создаёт
// запись обмена с claimed=false. Баланс на этом шаге не меняется: зачисление
// откладывается до явного получения кредитов исполнителем.
func (s *LifecycleService) CompleteOffer(ctx context.Context, offerID, ownerID uuid.UUID) (*models.Transaction, error) {
	trx, err := s.transactions.CreateForCompletedOffer(ctx, offerID, ownerID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOfferNotFound):
			return nil, apperror.ErrOfferNotFound
		case errors.Is(err, repository.ErrNotOfferOwner):
			return nil, apperror.New(apperror.ErrCodeForbidden, "завершить запрос может только его владелец")
		case errors.Is(err, repository.ErrOfferCompleted):
			return nil, apperror.ErrAlreadyCompleted
		case errors.Is(err, repository.ErrNoAcceptedApplication):
			return nil, apperror.ErrNoAcceptedApplication
		default:
			return nil, s.translate(err, "не удалось завершить запрос")
		}
	}

	logger.Log.WithField("offer_id", offerID).WithField("provider_id", trx.ProviderID).Info("обмен завершён, кредиты ожидают получения")

	userIDs := []uuid.UUID{trx.RequesterID, trx.ProviderID}
	s.feed.Publish(changefeed.Change{Table: changefeed.TableOffers, Op: changefeed.OpUpdate, RowID: offerID})
	s.feed.Publish(changefeed.Change{Table: changefeed.TableTransactions, Op: changefeed.OpInsert, RowID: trx.ID, UserIDs: userIDs})
	// Завершённый запрос больше не резервирует кредиты владельца.
	s.feed.Publish(changefeed.Change{Table: changefeed.TableBalances, Op: changefeed.OpUpdate, RowID: trx.RequesterID, UserIDs: []uuid.UUID{trx.RequesterID}})

	return trx, nil
}

// ClaimCredits зачисляет исполнителю кредиты за завершённый обмен. Перевод
// выполняется ровно один раз: повторный вызов возвращает AlreadyClaimed без
// изменения баланса и не считается ошибкой.
func (s *LifecycleService) ClaimCredits(ctx context.Context, offerID, providerID uuid.UUID) (*ClaimResult, error) {
	trx, alreadyClaimed, err := s.transactions.Claim(ctx, offerID, providerID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTransactionNotFound):
			return nil, apperror.ErrTransactionNotFound
		case errors.Is(err, repository.ErrNotProvider):
			return nil, apperror.New(apperror.ErrCodeForbidden, "кредиты получает только исполнитель обмена")
		default:
			return nil, s.translate(err, "не удалось получить кредиты")
		}
	}

	if !alreadyClaimed {
		logger.Log.WithField("offer_id", offerID).
			WithField("provider_id", providerID).
			WithField("hours", trx.Hours).
			Info("кредиты зачислены исполнителю")

		s.feed.Publish(changefeed.Change{Table: changefeed.TableTransactions, Op: changefeed.OpUpdate, RowID: trx.ID, UserIDs: []uuid.UUID{trx.RequesterID, trx.ProviderID}})
		s.feed.Publish(changefeed.Change{Table: changefeed.TableBalances, Op: changefeed.OpUpdate, RowID: providerID, UserIDs: []uuid.UUID{providerID}})
	}

	return &ClaimResult{Transaction: trx, AlreadyClaimed: alreadyClaimed}, nil
}

// DeleteOffer удаляет незавершённый запрос владельца вместе с заявками.
// Зарезервированные кредиты освобождаются автоматически: удалённый запрос
// перестаёт учитываться в доступном балансе.
func (s *LifecycleService) DeleteOffer(ctx context.Context, offerID, ownerID uuid.UUID) error {
	if err := s.offers.Delete(ctx, offerID, ownerID); err != nil {
		switch {
		case errors.Is(err, repository.ErrOfferNotFound):
			return apperror.ErrOfferNotFound
		case errors.Is(err, repository.ErrNotOfferOwner):
			return apperror.New(apperror.ErrCodeForbidden, "удалить запрос может только его владелец")
		case errors.Is(err, repository.ErrOfferCompleted):
			return apperror.New(apperror.ErrCodeAlreadyCompleted, "завершённый запрос удалить нельзя")
		default:
			return s.translate(err, "не удалось удалить запрос")
		}
	}

	s.feed.Publish(changefeed.Change{Table: changefeed.TableOffers, Op: changefeed.OpDelete, RowID: offerID})
	s.feed.Publish(changefeed.Change{Table: changefeed.TableApplications, Op: changefeed.OpDelete, RowID: offerID})
	s.feed.Publish(changefeed.Change{Table: changefeed.TableBalances, Op: changefeed.OpUpdate, RowID: ownerID, UserIDs: []uuid.UUID{ownerID}})

	return nil
}

// GetApplication возвращает заявку по идентификатору.
func (s *LifecycleService) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	app, err := s.applications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrApplicationNotFound) {
			return nil, apperror.ErrApplicationNotFound
		}
		return nil, s.translate(err, "не удалось получить заявку")
	}
	return app, nil
}

// ListApplicationsByOffer возвращает заявки на запрос. Список видит только владелец.
func (s *LifecycleService) ListApplicationsByOffer(ctx context.Context, offerID, callerID uuid.UUID) ([]models.Application, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, s.translate(err, "не удалось получить запрос")
	}
	if offer.OwnerID != callerID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "заявки видит только владелец запроса")
	}

	apps, err := s.applications.ListByOffer(ctx, offerID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить заявки")
	}
	return apps, nil
}

// ListApplicationsByApplicant возвращает заявки, поданные пользователем.
func (s *LifecycleService) ListApplicationsByApplicant(ctx context.Context, applicantID uuid.UUID) ([]models.Application, error) {
	apps, err := s.applications.ListByApplicant(ctx, applicantID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось получить заявки")
	}
	return apps, nil
}

// GetTransactionByOffer возвращает запись обмена для запроса.
func (s *LifecycleService) GetTransactionByOffer(ctx context.Context, offerID uuid.UUID) (*models.Transaction, error) {
	trx, err := s.transactions.GetByOfferID(ctx, offerID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, apperror.ErrTransactionNotFound
		}
		return nil, s.translate(err, "не удалось получить обмен")
	}
	return trx, nil
}

// viewerServices собирает услуги зрителя: из профиля и из запросов, где его
// заявку приняли.
func (s *LifecycleService) viewerServices(ctx context.Context, viewerID uuid.UUID) []string {
	var services []string
	if profile, err := s.profiles.GetProfile(ctx, viewerID); err == nil {
		services = append(services, profile.Services...)
	}
	if accepted, err := s.offers.AcceptedServiceTypes(ctx, viewerID); err == nil {
		services = append(services, accepted...)
	}
	return services
}

// translate сводит ошибки хранилища к прикладным: конфликт конкурентного
// обновления — сигнал повторить, всё прочее — внутренняя ошибка.
func (s *LifecycleService) translate(err error, message string) error {
	switch {
	case errors.Is(err, repository.ErrOfferNotFound):
		return apperror.ErrOfferNotFound
	case repository.IsConflict(err):
		return apperror.ErrStorageConflict
	default:
		return apperror.Wrap(err, apperror.ErrCodeInternal, message)
	}
}

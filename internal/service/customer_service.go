package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"storefront-service/internal/entity"
)

type CustomerRepository interface {
	GetCustomerByID(ctx context.Context, id int64) (*entity.Customer, error)
	GetCustomerByUsername(ctx context.Context, username string) (*entity.Customer, error)
	GetCustomerByAPIKey(ctx context.Context, apiKey string) (*entity.Customer, error)
	CreateCustomer(ctx context.Context, customer *entity.Customer) (*entity.Customer, error)
}

// CustomerClaims are carried by login tokens. The subject is the customer id.
type CustomerClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// CustomerID parses the subject claim.
func (c *CustomerClaims) CustomerID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

type CustomerService struct {
	repo     CustomerRepository
	secret   []byte
	tokenTTL time.Duration
}

// NewCustomerService creates a new instance of CustomerService.
func NewCustomerService(repo CustomerRepository, secret []byte, tokenTTL time.Duration) *CustomerService {
	return &CustomerService{repo: repo, secret: secret, tokenTTL: tokenTTL}
}

func (s *CustomerService) FindCustomer(ctx context.Context, id int64) (*entity.Customer, error) {
	return s.repo.GetCustomerByID(ctx, id)
}

func (s *CustomerService) FindByUsername(ctx context.Context, username string) (*entity.Customer, error) {
	return s.repo.GetCustomerByUsername(ctx, username)
}

func (s *CustomerService) FindByAPIKey(ctx context.Context, apiKey string) (*entity.Customer, error) {
	if apiKey == "" {
		return nil, entity.ErrCustomerNotFound
	}
	return s.repo.GetCustomerByAPIKey(ctx, apiKey)
}

// Register stores a new customer with a hashed credential and a fresh API key.
func (s *CustomerService) Register(ctx context.Context, req entity.RegisterRequest) (*entity.Customer, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	customer, err := s.repo.CreateCustomer(ctx, &entity.Customer{
		Username:    req.Username,
		Credential:  string(hash),
		DisplayName: req.DisplayName,
		Email:       req.Email,
		APIKey:      uuid.NewString(),
	})
	if err != nil {
		if !errors.Is(err, entity.ErrDuplicateCustomer) {
			logger.Error().Err(err).Msg("Error creating customer")
		}
		return nil, err
	}

	return customer, nil
}

// Login checks the credential and returns a signed HS256 token.
func (s *CustomerService) Login(ctx context.Context, username, password string) (string, error) {
	customer, err := s.repo.GetCustomerByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, entity.ErrCustomerNotFound) {
			return "", entity.ErrUnauthorized
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(customer.Credential), []byte(password)); err != nil {
		return "", entity.ErrUnauthorized
	}

	now := time.Now()
	claims := &CustomerClaims{
		Username: customer.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(customer.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

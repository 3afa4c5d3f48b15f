package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/materiales-erp/internal/application/dto"
	"github.com/jhoicas/materiales-erp/internal/domain"
	"github.com/jhoicas/materiales-erp/internal/domain/entity"
	"github.com/jhoicas/materiales-erp/internal/domain/repository"
)

const statusActive = "active"

// UseCase alta y consulta de datos de referencia: productos, clientes y proveedores.
type UseCase struct {
	products  repository.ProductRepository
	customers repository.CustomerRepository
	suppliers repository.SupplierRepository
}

// NewUseCase construye el caso de uso.
func NewUseCase(products repository.ProductRepository, customers repository.CustomerRepository, suppliers repository.SupplierRepository) *UseCase {
	return &UseCase{products: products, customers: customers, suppliers: suppliers}
}

// CreateProduct crea un producto activo. Precio y costo no pueden ser negativos.
func (uc *UseCase) CreateProduct(ctx context.Context, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if in.Price.IsNegative() || in.Cost.IsNegative() {
		return nil, domain.ErrInvalidInput
	}
	if in.Unit == "" {
		in.Unit = "unidad"
	}
	now := time.Now()
	p := &entity.Product{
		ID:        uuid.New().String(),
		SKU:       in.SKU,
		Name:      in.Name,
		Category:  in.Category,
		Unit:      in.Unit,
		Price:     in.Price,
		Cost:      in.Cost,
		Status:    statusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.products.Create(ctx, p); err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// GetProduct obtiene un producto; (nil, nil) si no existe.
func (uc *UseCase) GetProduct(ctx context.Context, id string) (*dto.ProductResponse, error) {
	p, err := uc.products.GetByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// ListProducts lista productos por SKU.
func (uc *UseCase) ListProducts(ctx context.Context, limit, offset int) ([]*dto.ProductResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	list, err := uc.products.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.ProductResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toProductResponse(p))
	}
	return out, nil
}

// CreateCustomer crea un cliente activo.
func (uc *UseCase) CreateCustomer(ctx context.Context, in dto.CreateCustomerRequest) (*dto.CustomerResponse, error) {
	now := time.Now()
	c := &entity.Customer{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Status:    statusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.customers.Create(ctx, c); err != nil {
		return nil, err
	}
	return toCustomerResponse(c), nil
}

// ListCustomers lista clientes.
func (uc *UseCase) ListCustomers(ctx context.Context, limit, offset int) ([]*dto.CustomerResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	list, err := uc.customers.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.CustomerResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCustomerResponse(c))
	}
	return out, nil
}

// CreateSupplier crea un proveedor activo con su límite de crédito.
func (uc *UseCase) CreateSupplier(ctx context.Context, in dto.CreateSupplierRequest) (*dto.SupplierResponse, error) {
	if in.CreditLimit.IsNegative() {
		return nil, domain.ErrInvalidInput
	}
	now := time.Now()
	s := &entity.Supplier{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		CreditLimit: in.CreditLimit,
		Status:      statusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.suppliers.Create(ctx, s); err != nil {
		return nil, err
	}
	return toSupplierResponse(s), nil
}

// ListSuppliers lista proveedores.
func (uc *UseCase) ListSuppliers(ctx context.Context, limit, offset int) ([]*dto.SupplierResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	list, err := uc.suppliers.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.SupplierResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSupplierResponse(s))
	}
	return out, nil
}

func toProductResponse(p *entity.Product) *dto.ProductResponse {
	return &dto.ProductResponse{
		ID:        p.ID,
		SKU:       p.SKU,
		Name:      p.Name,
		Category:  p.Category,
		Unit:      p.Unit,
		Price:     p.Price,
		Cost:      p.Cost,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
}

func toCustomerResponse(c *entity.Customer) *dto.CustomerResponse {
	return &dto.CustomerResponse{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone, Status: c.Status}
}

func toSupplierResponse(s *entity.Supplier) *dto.SupplierResponse {
	return &dto.SupplierResponse{ID: s.ID, Name: s.Name, Email: s.Email, Phone: s.Phone, CreditLimit: s.CreditLimit, Status: s.Status}
}

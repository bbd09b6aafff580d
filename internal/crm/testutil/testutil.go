package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/config"
	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/middleware"
	"github.com/bitfantasy/nimo-crm/internal/shared/storage"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_crm"
	JWTSecret  = "nimo-crm-jwt-secret-test"
)

// projectRoot 向上查找 go.mod 所在目录
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func loadEnv() {
	if root := projectRoot(); root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB 在独立schema中建表，测试结束后删除schema。
// 数据库不可达时跳过测试。
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		config.GetEnvOrDefault("DB_HOST", "127.0.0.1"),
		config.GetEnvOrDefault("DB_PORT", "5432"),
		config.GetEnvOrDefault("DB_USER", "nimo"),
		config.GetEnvOrDefault("DB_PASSWORD", "nimo123"),
		config.GetEnvOrDefault("DB_NAME", "nimo_crm"),
	)
	silent := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	setupDB, err := gorm.Open(postgres.Open(baseDSN), silent)
	if err != nil {
		t.Skipf("database unavailable: %v", err)
	}
	sqlSetup, _ := setupDB.DB()
	if err := sqlSetup.Ping(); err != nil {
		sqlSetup.Close()
		t.Skipf("database unavailable: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup.Close()

	// search_path 写入DSN，连接池内所有连接都落在测试schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(entity.AllModels()...); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), silent)
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			if sqlClean, _ := cleanDB.DB(); sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// SetupRouter 测试用gin引擎
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup 带JWT认证的路由组
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// NewStore 测试用进程内对象存储
func NewStore() *storage.MemoryStore {
	return storage.NewMemoryStore("http://cdn.test")
}

// GenerateTestToken 生成测试JWT
func GenerateTestToken(userID, name string, roles, permissions []string) string {
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": userID + "@test.com",
		"roles": roles,
		"perms": permissions,
		"iss":   "nimo-crm",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken 管理员测试用户
func DefaultTestToken() string {
	return GenerateTestToken("test-user-001", "Test Admin", []string{middleware.RoleAdmin}, []string{middleware.PermAll})
}

// PurchaserToken 采购员：可读写与导出，不可级联删除
func PurchaserToken() string {
	return GenerateTestToken("test-user-003", "Test Purchaser", []string{middleware.RolePurchaser}, nil)
}

// ReadOnlyToken 没有写权限的测试用户
func ReadOnlyToken() string {
	return GenerateTestToken("test-user-002", "Test Viewer", []string{middleware.RoleViewer}, []string{middleware.PermRead})
}

// DoRequest 发送JSON请求
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	}
	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	return serve(r, req, token)
}

// FormFile multipart 中的文件字段
type FormFile struct {
	Field    string
	Filename string
	Data     []byte
}

// DoMultipart 发送multipart请求
func DoMultipart(r *gin.Engine, method, path string, fields map[string]string, file *FormFile, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if file != nil {
		part, _ := mw.CreateFormFile(file.Field, file.Filename)
		io.Copy(part, bytes.NewReader(file.Data))
	}
	mw.Close()

	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return serve(r, req, token)
}

func serve(r *gin.Engine, req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse 解析响应信封
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// Data 取响应中的 data 对象
func Data(w *httptest.ResponseRecorder) map[string]interface{} {
	data, _ := ParseResponse(w)["data"].(map[string]interface{})
	return data
}

// SeedCustomer 写入测试客户
func SeedCustomer(t *testing.T, db *gorm.DB, name string) *entity.Customer {
	t.Helper()
	c := &entity.Customer{Name: name, Status: "ACTIVE"}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("Failed to seed customer: %v", err)
	}
	return c
}

// SeedVendor 写入测试供应商
func SeedVendor(t *testing.T, db *gorm.DB, name string) *entity.Vendor {
	t.Helper()
	v := &entity.Vendor{Name: name, Status: entity.VendorStatusActive}
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("Failed to seed vendor: %v", err)
	}
	return v
}

// SeedPurchaseOrder 写入测试采购订单
func SeedPurchaseOrder(t *testing.T, db *gorm.DB, customerID, vendorID int64) *entity.PurchaseOrder {
	t.Helper()
	po := &entity.PurchaseOrder{
		CustomerID: customerID,
		VendorID:   vendorID,
		Status:     entity.POStatusActive,
		Priority:   entity.PriorityNormal,
	}
	if err := db.Create(po).Error; err != nil {
		t.Fatalf("Failed to seed purchase order: %v", err)
	}
	return po
}

// SeedItem 写入测试行项
func SeedItem(t *testing.T, db *gorm.DB, poID int64, name string, qty int, unitPrice string) *entity.PurchaseOrderItem {
	t.Helper()
	item := &entity.PurchaseOrderItem{
		PurchaseOrderID: poID,
		ItemName:        name,
		Quantity:        qty,
		UnitPrice:       decimal.RequireFromString(unitPrice),
		Currency:        "USD",
	}
	item.ComputeLineTotal()
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("Failed to seed item: %v", err)
	}
	return item
}

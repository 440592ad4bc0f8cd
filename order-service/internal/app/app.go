package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/director74/saga-orders/order-service/config"
	httpController "github.com/director74/saga-orders/order-service/internal/controller/http"
	kafkaController "github.com/director74/saga-orders/order-service/internal/controller/kafka"
	"github.com/director74/saga-orders/order-service/internal/entity"
	"github.com/director74/saga-orders/order-service/internal/repo"
	"github.com/director74/saga-orders/order-service/internal/usecase"
	"github.com/director74/saga-orders/pkg/database"
	"github.com/director74/saga-orders/pkg/errors"
	"github.com/director74/saga-orders/pkg/kafka"
	"github.com/director74/saga-orders/pkg/messaging"
	"github.com/director74/saga-orders/pkg/outbox"
	"github.com/director74/saga-orders/pkg/sagahandler"
)

// App представляет приложение
type App struct {
	config          *config.Config
	httpServer      *http.Server
	db              *gorm.DB
	kafka           *kafka.Kafka
	sagaConsumer    *kafkaController.SagaConsumer
	outboxPublisher *outbox.Publisher
}

func NewApp(config *config.Config) (*App, error) {
	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(config.Postgres)
	if err != nil {
		return nil, errors.AppendPrefix(err, "не удалось подключиться к базе данных")
	}

	// Автомиграция моделей, включая сагу, outbox и записи идемпотентности
	if err := database.AutoMigrateWithCleanup(db,
		&entity.Order{},
		&entity.SagaTransaction{},
		&sagahandler.ProcessedCommand{},
		&outbox.Event{},
	); err != nil {
		return nil, errors.AppendPrefix(err, "не удалось выполнить миграцию")
	}

	// Инициализируем подключение к Kafka
	kfk, err := messaging.InitKafka(config.Kafka)
	if err != nil {
		database.CloseDB(db)
		return nil, errors.AppendPrefix(err, "не удалось подключиться к Kafka")
	}

	// Создаем репозитории и use cases
	sagaRepo := repo.NewSagaRepository(db)
	orchestrator := usecase.NewSagaOrchestrator(sagaRepo, kfk, nil)
	orderUseCase := usecase.NewOrderUseCase()

	// Консьюмеры команд и ответов саги
	sagaConsumer := kafkaController.NewSagaConsumer(kfk, db, orchestrator, orderUseCase, config.Topics)

	// Фоновая выгрузка событий outbox
	outboxPublisher := outbox.NewPublisher(db, kfk, "OrderService")

	// Создаем HTTP контроллеры
	orderHandler := httpController.NewOrderHandler(orchestrator)

	// Инициализируем Gin роутер
	router := gin.Default()

	// Добавляем middleware для обработки ошибок и восстановления после паники
	router.Use(errors.RecoveryMiddleware())
	router.Use(errors.ErrorMiddleware())

	// Настраиваем обработчики для 404 и 405 ошибок
	router.NoRoute(errors.NotFoundHandler())
	router.NoMethod(errors.MethodNotAllowedHandler())

	// Регистрируем эндпоинты
	orderHandler.RegisterRoutes(router)

	// Настраиваем HTTP сервер
	httpServer := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      router,
		ReadTimeout:  config.HTTP.ReadTimeout,
		WriteTimeout: config.HTTP.WriteTimeout,
	}

	return &App{
		config:          config,
		httpServer:      httpServer,
		db:              db,
		kafka:           kfk,
		sagaConsumer:    sagaConsumer,
		outboxPublisher: outboxPublisher,
	}, nil
}

// Run запускает приложение
func (a *App) Run() error {
	// Настраиваем обработку сигналов завершения
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Подписываемся на топики саги
	if err := a.sagaConsumer.Setup(ctx); err != nil {
		return errors.AppendPrefix(err, "не удалось запустить консьюмеры саги")
	}

	// Запускаем выгрузку outbox
	go a.outboxPublisher.Run(ctx)

	// Запускаем HTTP сервер в горутине
	go func() {
		log.Printf("HTTP сервер запущен на порту %s", a.config.HTTP.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ошибка запуска HTTP сервера: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("Получен сигнал завершения, закрываем приложение...")
	case <-ctx.Done():
		log.Println("Контекст завершен, закрываем приложение...")
	}

	return a.Shutdown()
}

// Shutdown корректно завершает работу приложения
func (a *App) Shutdown() error {
	errGroup := errors.NewErrorGroup()

	// Закрываем HTTP сервер
	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.httpServer.Shutdown(ctx); err != nil {
			errGroup.AddPrefix(err, "ошибка при закрытии HTTP сервера")
		}
	}

	// Закрываем Kafka
	if a.kafka != nil {
		errGroup.AddPrefix(a.kafka.Close(), "ошибка при закрытии Kafka")
	}

	// Закрываем соединение с базой данных
	if a.db != nil {
		if err := database.CloseDB(a.db); err != nil {
			errGroup.AddPrefix(err, "ошибка при закрытии соединения с базой данных")
		}
	}

	if errGroup.HasErrors() {
		errors.LogError(errGroup, "Shutdown")
		return errGroup
	}

	log.Println("Приложение успешно завершено")
	return nil
}

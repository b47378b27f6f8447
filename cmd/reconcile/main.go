package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/config"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/database"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/reconcile"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/report"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/repository"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// 单次执行考勤对账，供外部定时器或者运维手动补跑使用
func main() {
	var opts reconcile.Options

	flag.BoolVar(&opts.DryRun, "dry-run", false, "只计算结果，不写入数据库")
	flag.StringVar(&opts.TargetDate, "date", "", "要对账的日期 (YYYY-MM-DD)，默认为部署时区的昨天；正式模式下必须晚于最近一次对账日期")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// run 返回之后所有连接都已经关闭，这里才能安全地退出
	if err := run(logger, opts); err != nil {
		logger.Error("考勤对账失败", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, opts reconcile.Options) error {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("无法读取配置文件: %w", err)
	}

	// 班次要在认领日期之前校验，否则写入失败时日期已经被占用
	fallbackShift, err := domain.ParseShift(cfg.Attendance.FallbackShift)
	if err != nil {
		return fmt.Errorf("无效的默认班次: %w", err)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("无法创建数据库连接池: %w", err)
	}
	defer dbpool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(ctx); err != nil {
		return fmt.Errorf("无法连接到数据库: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(dbpool, logger); err != nil {
			return fmt.Errorf("无法执行数据库迁移: %w", err)
		}
	}

	repo := repository.NewRepository(cfg, dbpool)

	// 连接 rabbitmq 和 redis，对账结果的通知和 HTTP 触发保持一致
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		return fmt.Errorf("无法连接到 rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("无法建立通道: %w", err)
	}
	defer ch.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	cache := report.NewCache(rdb, time.Duration(cfg.Report.CacheExpiration)*time.Second)
	publisher := report.NewPublisher(ch, cfg.RabbitMQ.Queue, cfg.Report.AdminEmails)
	reporter := report.NewReporter(cache, publisher, logger, time.Duration(cfg.Report.OperationTimeout)*time.Second)

	job := reconcile.NewJob(repo, repo, repo, repo, logger, fallbackShift)
	runner := reconcile.NewRunner(job, reporter)

	result, err := runner.Run(context.Background(), opts)
	if err != nil {
		return err
	}

	// 结果输出到 stdout，方便和日志分开收集
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("无法输出对账结果: %w", err)
	}

	return nil
}

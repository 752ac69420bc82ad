package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nvr-ai/debris/trainer"
)

// setDefaults registers every key, so environment overrides reach keys absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)

	v.SetDefault("dataset.descriptor", "data.yaml")
	v.SetDefault("dataset.workers", runtime.NumCPU())

	rc := trainer.DefaultRunConfig()
	v.SetDefault("train.executable", "yolo")
	v.SetDefault("train.executable_args", []string{})
	v.SetDefault("train.check_labels", true)
	v.SetDefault("train.base_weights", rc.BaseWeights)
	v.SetDefault("train.epochs", rc.Epochs)
	v.SetDefault("train.batch_size", rc.BatchSize)
	v.SetDefault("train.image_size", rc.ImageSize)
	v.SetDefault("train.device", rc.Device)
	v.SetDefault("train.run_name", rc.RunName)
	v.SetDefault("train.project", rc.Project)
	v.SetDefault("train.patience", rc.Patience)
	v.SetDefault("train.exist_ok", rc.ExistOK)
	v.SetDefault("train.seed", rc.Seed)
	v.SetDefault("train.deterministic", rc.Deterministic)
	v.SetDefault("train.optimizer", rc.Optimizer)
	v.SetDefault("train.pretrained", rc.Pretrained)
	v.SetDefault("train.save", rc.Save)
	v.SetDefault("train.verbose", rc.Verbose)
	v.SetDefault("train.single_cls", rc.SingleClass)
	v.SetDefault("train.rect", rc.Rect)
	v.SetDefault("train.cos_lr", rc.CosLR)
	v.SetDefault("train.close_mosaic", rc.CloseMosaic)
	v.SetDefault("train.resume", rc.Resume)
	v.SetDefault("train.amp", rc.AMP)
	v.SetDefault("train.fraction", rc.Fraction)
	v.SetDefault("train.profile", rc.Profile)

	h := rc.Hyper
	v.SetDefault("train.hyper.lr0", h.LR0)
	v.SetDefault("train.hyper.lrf", h.LRF)
	v.SetDefault("train.hyper.momentum", h.Momentum)
	v.SetDefault("train.hyper.weight_decay", h.WeightDecay)
	v.SetDefault("train.hyper.warmup_epochs", h.WarmupEpochs)
	v.SetDefault("train.hyper.warmup_momentum", h.WarmupMomentum)
	v.SetDefault("train.hyper.warmup_bias_lr", h.WarmupBiasLR)
	v.SetDefault("train.hyper.hsv_h", h.HSVH)
	v.SetDefault("train.hyper.hsv_s", h.HSVS)
	v.SetDefault("train.hyper.hsv_v", h.HSVV)
	v.SetDefault("train.hyper.degrees", h.Degrees)
	v.SetDefault("train.hyper.translate", h.Translate)
	v.SetDefault("train.hyper.scale", h.Scale)
	v.SetDefault("train.hyper.shear", h.Shear)
	v.SetDefault("train.hyper.perspective", h.Perspective)
	v.SetDefault("train.hyper.flipud", h.FlipUD)
	v.SetDefault("train.hyper.fliplr", h.FlipLR)
	v.SetDefault("train.hyper.mosaic", h.Mosaic)
	v.SetDefault("train.hyper.mixup", h.Mixup)
	v.SetDefault("train.hyper.copy_paste", h.CopyPaste)

	ec := trainer.DefaultExportConfig()
	v.SetDefault("export.weights", "runs/train/yolo_space_debris/weights/best.pt")
	v.SetDefault("export.format", ec.Format)
	v.SetDefault("export.image_size", ec.ImageSize)
	v.SetDefault("export.nms", ec.NMS)
	v.SetDefault("export.opset", ec.Opset)
	v.SetDefault("export.simplify", ec.Simplify)
	v.SetDefault("export.half", ec.Half)
	v.SetDefault("export.device", ec.Device)

	v.SetDefault("inference.model", "runs/train/yolo_space_debris/weights/best.onnx")
	v.SetDefault("inference.library_path", "")
	v.SetDefault("inference.device", "cpu")
	v.SetDefault("inference.image_size", 640)
	v.SetDefault("inference.confidence", 0.25)
	v.SetDefault("inference.threads", 0)
	v.SetDefault("inference.metrics_file", "")

	v.SetDefault("predict.inputs", []string{"train", "valid"})
	v.SetDefault("predict.output", "results")

	v.SetDefault("video.files", []string{})
	v.SetDefault("video.output", "Results")
	v.SetDefault("video.progress_every", 30)

	v.SetDefault("satellites.api_key", "")
	v.SetDefault("satellites.endpoint", "https://api.n2yo.com/rest/v1/satellite")
	v.SetDefault("satellites.latitude", 0.0)
	v.SetDefault("satellites.longitude", 0.0)
	v.SetDefault("satellites.altitude", 0.0)
	v.SetDefault("satellites.radius", 70)
	v.SetDefault("satellites.category", 18)
	v.SetDefault("satellites.timeout", 15*time.Second)

	v.SetDefault("landing.addr", ":8080")
	v.SetDefault("landing.dir", "")
	v.SetDefault("landing.upstream", "https://api.n2yo.com/rest/v1/satellite")
	v.SetDefault("landing.cache_ttl", 30*time.Second)
	v.SetDefault("landing.rate_limit", 1.0)
	v.SetDefault("landing.burst", 5)
	v.SetDefault("landing.timeout", 15*time.Second)
}

// envBinding maps a configuration key to an environment variable outside the DEBRIS_ prefix.
type envBinding struct {
	ConfigKey string
	EnvVar    string
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"satellites.api_key", "N2YO_API_KEY"},
	}
}

func bindEnv(v *viper.Viper) {
	for _, b := range getEnvBindings() {
		// The prefixed name keeps working alongside the well-known one.
		_ = v.BindEnv(b.ConfigKey, EnvPrefix+"_"+envKey(b.ConfigKey), b.EnvVar)
	}
}

func envKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
